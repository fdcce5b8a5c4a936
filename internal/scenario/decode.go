package scenario

import (
	"encoding/json"
	"fmt"
	"sort"

	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/tarot"
)

type fileScenario struct {
	Metadata      Metadata        `json:"metadata"`
	Party         json.RawMessage `json:"party"`
	Events        []fileEvent     `json:"events"`
	Interventions []Intervention  `json:"interventions"`
}

type filePlayer struct {
	Role              player.Role            `json:"role"`
	StartingHealth    float64                `json:"starting_health"`
	StartingInventory map[string]int         `json:"starting_inventory"`
	Tarot             map[tarot.Card]float64 `json:"tarot"`
}

// fileEvent is the flat on-disk event shape; Type selects the variant.
type fileEvent struct {
	Type        string  `json:"type"`
	Player      string  `json:"player"`
	Delay       float64 `json:"delay"`
	Advancement string  `json:"advancement"`
	Source      string  `json:"source"`
	Amount      float64 `json:"amount"`
	Action      string  `json:"action"`
	Item        string  `json:"item"`
	Count       int     `json:"count"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Message     string  `json:"message"`
	Cause       string  `json:"cause"`
	Mob         string  `json:"mob"`
	Structure   string  `json:"structure"`
	Health      float64 `json:"health"`
	Food        *int    `json:"food"`
}

func (f fileEvent) toEvent() (event.Event, error) {
	base := event.Base{Player: f.Player, Delay: f.Delay}
	switch event.Kind(f.Type) {
	case event.KindAdvancement:
		return event.Advancement{Base: base, Key: catalogs.NormalizeAdvancement(f.Advancement)}, nil
	case event.KindDamage:
		return event.Damage{Base: base, Source: f.Source, Amount: f.Amount}, nil
	case event.KindInventory:
		return event.Inventory{Base: base, Action: event.InventoryAction(f.Action), Item: catalogs.NormalizeItem(f.Item), Count: f.Count}, nil
	case event.KindDimension:
		from, ok := catalogs.ParseDimension(f.From)
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", f.From)
		}
		to, ok := catalogs.ParseDimension(f.To)
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", f.To)
		}
		return event.Dimension{Base: base, From: from, To: to}, nil
	case event.KindChat:
		return event.Chat{Base: base, Message: f.Message}, nil
	case event.KindDeath:
		return event.Death{Base: base, Cause: f.Cause}, nil
	case event.KindDragonKill:
		return event.DragonKill{Base: base}, nil
	case event.KindMobKill:
		count := f.Count
		if count == 0 {
			count = 1
		}
		return event.MobKill{Base: base, Mob: catalogs.NormalizeItem(f.Mob), Count: count}, nil
	case event.KindStructure:
		return event.Structure{Base: base, Structure: catalogs.NormalizeStructure(f.Structure)}, nil
	case event.KindHealth:
		return event.Health{Base: base, Health: f.Health, Food: f.Food}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", f.Type)
}

// decode turns a schema-valid document into a Scenario. Party preset
// expansion happens here.
func decode(doc *document) (*Scenario, []Issue) {
	b, err := json.Marshal(doc.data)
	if err != nil {
		return nil, []Issue{{Rule: RuleParse, Event: -1, Message: err.Error()}}
	}
	var fs fileScenario
	if err := json.Unmarshal(b, &fs); err != nil {
		return nil, []Issue{{Rule: RuleParse, Event: -1, Message: err.Error()}}
	}

	s := &Scenario{Metadata: fs.Metadata, Interventions: fs.Interventions}
	var issues []Issue

	var preset string
	if err := json.Unmarshal(fs.Party, &preset); err == nil {
		defs, ok := Preset(preset)
		if !ok {
			issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "party", Message: fmt.Sprintf("unknown preset %q", preset)})
		}
		s.Preset = preset
		s.Party = defs
	} else {
		var explicit map[string]filePlayer
		if err := json.Unmarshal(fs.Party, &explicit); err != nil {
			issues = append(issues, Issue{Rule: RuleParse, Event: -1, Field: "party", Message: err.Error()})
		}
		for _, name := range partyOrder(doc.partyOrder, explicit) {
			p := explicit[name]
			s.Party = append(s.Party, player.Definition{
				Name:              name,
				Role:              p.Role,
				StartingHealth:    p.StartingHealth,
				StartingInventory: p.StartingInventory,
				Tarot:             p.Tarot,
			})
		}
	}

	for i, fe := range fs.Events {
		e, err := fe.toEvent()
		if err != nil {
			issues = append(issues, Issue{Rule: RuleParse, Event: i, Field: "type", Message: err.Error()})
			continue
		}
		s.Events = append(s.Events, e)
	}
	for i := range s.Interventions {
		for j := range s.Interventions[i].Tools {
			if s.Interventions[i].Tools[j].Args == nil {
				s.Interventions[i].Tools[j].Args = map[string]any{}
			}
		}
	}
	return s, issues
}

// partyOrder keeps the declared order when known and falls back to sorted
// names for sources that lose it.
func partyOrder(declared []string, party map[string]filePlayer) []string {
	if len(declared) == len(party) {
		ok := true
		for _, n := range declared {
			if _, found := party[n]; !found {
				ok = false
				break
			}
		}
		if ok {
			return declared
		}
	}
	names := make([]string, 0, len(party))
	for n := range party {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
