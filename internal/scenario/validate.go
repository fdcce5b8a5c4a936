package scenario

import (
	"fmt"

	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
)

// dragonKillTail is how many events may follow a dragon kill before it is
// flagged as unusual.
const dragonKillTail = 3

// Validate runs the domain checks: party shape, player references,
// advancement ordering, death consistency and capability gates. Warnings are
// recomputed on every call.
func (s *Scenario) Validate() error {
	s.Warnings = nil
	var issues []Issue

	party := map[string]bool{}
	for _, p := range s.Party {
		switch {
		case p.Name == "":
			issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "party", Message: "player without a name"})
		case party[p.Name]:
			issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "party." + p.Name, Message: "duplicate player"})
		case p.Role != "" && !p.Role.Valid():
			issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "party." + p.Name + ".role", Message: fmt.Sprintf("unknown role %q", p.Role)})
		}
		party[p.Name] = true
	}
	if len(s.Party) == 0 {
		issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "party", Message: "party is empty"})
	}
	if len(s.Events) == 0 {
		issues = append(issues, Issue{Rule: RuleParty, Event: -1, Field: "events", Message: "scenario has no events"})
	}

	var caps event.Capabilities
	holdings := map[string]map[string]int{}
	for _, p := range s.Party {
		held := map[string]int{}
		for item, n := range p.StartingInventory {
			item = catalogs.NormalizeItem(item)
			held[item] += n
			caps.ObserveItem(item, n)
		}
		holdings[p.Name] = held
	}

	earned := map[string]map[string]bool{}
	dead := map[string]int{}
	dragonKilled := -1

	for i, e := range s.Events {
		name := e.Actor()
		if name != "" && !party[name] {
			issues = append(issues, Issue{Rule: RuleUnknownPlayer, Event: i, Field: "player", Message: fmt.Sprintf("player %q is not in the party", name)})
			continue
		}
		if name == "" {
			if _, ok := e.(event.DragonKill); !ok {
				issues = append(issues, Issue{Rule: RuleUnknownPlayer, Event: i, Field: "player", Message: fmt.Sprintf("%s event needs a player", e.Kind())})
				continue
			}
		}
		if at, isDead := dead[name]; isDead && name != "" {
			issues = append(issues, Issue{Rule: RuleDeadPlayer, Event: i, Field: "player", Message: fmt.Sprintf("%s died at events[%d] and cannot act again", name, at)})
			continue
		}
		if gate := caps.Gate(e); gate != "" {
			issues = append(issues, Issue{Rule: RuleCapabilityGate, Event: i, Message: fmt.Sprintf("%s requires %s", describe(e), gate)})
		}

		switch ev := e.(type) {
		case event.Advancement:
			key := catalogs.NormalizeAdvancement(ev.Key)
			if earned[name] == nil {
				earned[name] = map[string]bool{}
			}
			if parent, ok := catalogs.Prerequisite(key); ok && !earned[name][parent] {
				issues = append(issues, Issue{
					Rule:    RulePrerequisite,
					Event:   i,
					Field:   "advancement",
					Message: fmt.Sprintf("%s requires %s, which %s has not earned earlier", catalogs.ShortName(key), catalogs.ShortName(parent), name),
				})
			}
			earned[name][key] = true
		case event.Inventory:
			item := catalogs.NormalizeItem(ev.Item)
			switch ev.Action {
			case event.InventoryAdd:
				holdings[name][item] += ev.Count
			case event.InventoryRemove:
				if have := holdings[name][item]; have < ev.Count {
					s.warnf("events[%d]: %s removes %d %s but holds %d; it will be a no-op", i, name, ev.Count, item, have)
				} else {
					holdings[name][item] = have - ev.Count
				}
			}
		case event.Death:
			dead[name] = i
		case event.Damage:
			if ev.Amount <= 0 {
				issues = append(issues, Issue{Rule: RuleSchema, Event: i, Field: "amount", Message: "damage must be positive"})
			}
		case event.DragonKill:
			if dragonKilled >= 0 {
				s.warnf("events[%d]: dragon already killed at events[%d]; it will be a no-op", i, dragonKilled)
			} else {
				dragonKilled = i
				if rest := len(s.Events) - i - 1; rest > dragonKillTail {
					s.warnf("events[%d]: dragon_kill is followed by %d more events", i, rest)
				}
			}
		}
		caps.Observe(e)
	}

	for i, iv := range s.Interventions {
		if iv.After < 0 || iv.After >= len(s.Events) {
			issues = append(issues, Issue{Rule: RuleIntervention, Event: -1, Field: fmt.Sprintf("interventions[%d].after", i), Message: fmt.Sprintf("no event at index %d", iv.After)})
		}
		for j, call := range iv.Tools {
			if !catalogs.KnownTool(call.Name) {
				s.warnf("interventions[%d].tools[%d]: unknown tool %q will be absorbed", i, j, call.Name)
			}
			if target := call.Target(); target != "" && !party[target] {
				s.warnf("interventions[%d].tools[%d]: target %q is not in the party", i, j, target)
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Scenario: s.Metadata.Name, Issues: issues}
	}
	return nil
}

func (s *Scenario) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func describe(e event.Event) string {
	switch ev := e.(type) {
	case event.Dimension:
		return fmt.Sprintf("dimension change to %s", ev.To)
	case event.Structure:
		return fmt.Sprintf("discovering %s", ev.Structure)
	}
	return string(e.Kind())
}

// Definitions returns a copy of the party definitions.
func (s *Scenario) Definitions() []player.Definition {
	return append([]player.Definition(nil), s.Party...)
}
