package world

import (
	"fmt"
	"math/rand"
	"sort"

	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/tarot"
	"eris.ai/internal/sim/trace"
)

// World is the synthetic run state. It is not safe for concurrent use; a run
// owns exactly one World and drives it from a single goroutine.
type World struct {
	cfg Config
	rng *rand.Rand

	players map[string]*player.State
	order   []string
	tarot   map[string]*tarot.Profile

	dragon    Dragon
	weather   string
	timeOfDay int

	mobs    []SpawnedMob
	effects map[string]*ActiveEffect

	caps       event.Capabilities
	structures map[string]bool

	pressure pressure.Pressure
	phase    pressure.Phase

	state    GameState
	victory  bool
	clock    float64
	respawns int

	eventHistory []event.Event
	toolHistory  []ToolRecord

	trace *trace.Trace
}

// New creates a world for the given party. Names must be unique and non-empty.
func New(cfg Config, party []player.Definition) (*World, error) {
	cfg.applyDefaults()
	if len(party) == 0 {
		return nil, fmt.Errorf("world: empty party")
	}
	w := &World{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		players:    make(map[string]*player.State, len(party)),
		tarot:      make(map[string]*tarot.Profile, len(party)),
		dragon:     Dragon{Alive: true, Health: DragonMaxHealth},
		weather:    "clear",
		timeOfDay:  1000,
		effects:    map[string]*ActiveEffect{},
		structures: map[string]bool{},
		trace:      trace.New(cfg.Scenario, len(party)),
	}
	for _, def := range party {
		if def.Name == "" {
			return nil, fmt.Errorf("world: party member without a name")
		}
		if _, dup := w.players[def.Name]; dup {
			return nil, fmt.Errorf("world: duplicate player %q", def.Name)
		}
		p := player.New(def)
		w.players[def.Name] = p
		w.order = append(w.order, def.Name)
		prof := &tarot.Profile{}
		for card, weight := range def.Tarot {
			prof.Seed(card, weight)
		}
		w.tarot[def.Name] = prof
		for _, item := range p.InventoryItems() {
			w.caps.ObserveItem(item, p.ItemCount(item))
		}
	}
	return w, nil
}

func (w *World) logf(format string, args ...any) {
	if w.cfg.Verbose {
		w.cfg.Logger.Printf(format, args...)
	}
}

func (w *World) RunID() string                    { return w.cfg.RunID }
func (w *World) Seed() int64                      { return w.cfg.Seed }
func (w *World) State() GameState                 { return w.state }
func (w *World) Clock() float64                   { return w.clock }
func (w *World) Phase() pressure.Phase            { return w.phase }
func (w *World) Tension() float64                 { return w.pressure.Tension }
func (w *World) Karma() float64                   { return w.pressure.Karma }
func (w *World) Dragon() Dragon                   { return w.dragon }
func (w *World) Weather() string                  { return w.weather }
func (w *World) TimeOfDay() int                   { return w.timeOfDay }
func (w *World) Trace() *trace.Trace              { return w.trace }
func (w *World) Victory() bool                    { return w.victory }
func (w *World) Party() []string                  { return append([]string(nil), w.order...) }
func (w *World) Capabilities() event.Capabilities { return w.caps }

// Fracture is recomputed from its terms on every call.
func (w *World) Fracture() float64 {
	return w.pressure.Fracture(w.fearSum())
}

func (w *World) ApocalypseTriggered() bool { return w.pressure.ApocalypseTriggered() }
func (w *World) HardApocalypse() bool      { return w.pressure.HardApocalypse() }

// Player returns a copy of the named player's state.
func (w *World) Player(name string) (*player.State, bool) {
	p, ok := w.players[name]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Tarot returns a copy of the named player's profile.
func (w *World) Tarot(name string) (tarot.Profile, bool) {
	p, ok := w.tarot[name]
	if !ok {
		return tarot.Profile{}, false
	}
	return *p, true
}

func (w *World) SpawnedMobs() []SpawnedMob { return append([]SpawnedMob(nil), w.mobs...) }

// ActiveEffects returns current effects sorted by player then effect.
func (w *World) ActiveEffects() []ActiveEffect {
	keys := w.effectKeys()
	out := make([]ActiveEffect, 0, len(keys))
	for _, k := range keys {
		out = append(out, *w.effects[k])
	}
	return out
}

func (w *World) EventHistory() []event.Event { return append([]event.Event(nil), w.eventHistory...) }
func (w *World) ToolHistory() []ToolRecord   { return append([]ToolRecord(nil), w.toolHistory...) }

func (w *World) effectKeys() []string {
	keys := make([]string, 0, len(w.effects))
	for k := range w.effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (w *World) fearSum() float64 {
	sum := 0.0
	for _, name := range w.order {
		sum += w.players[name].Fear
	}
	return sum
}

func (w *World) aliveCount() int {
	n := 0
	for _, name := range w.order {
		if w.players[name].Alive {
			n++
		}
	}
	return n
}

func (w *World) deadCount() int { return len(w.order) - w.aliveCount() }

// Decay scales tension toward zero. It is not an action and records no diff;
// the next diff's fracture_before reflects it.
func (w *World) Decay(factor float64) {
	w.pressure.Decay(factor)
	w.phase = pressure.PhaseFor(w.Fracture())
}

// Finish closes the run. It is a lifecycle transition, not a recorded action.
func (w *World) Finish() {
	if w.state != Ended {
		w.logf("run %s finished at t=%.1f state=%s", w.cfg.RunID, w.clock, w.state)
	}
	w.state = Ended
}

// Done reports whether the run has reached ENDING or ENDED.
func (w *World) Done() bool { return w.state >= Ending }

func (w *World) pickOther(name string) (string, bool) {
	var candidates []string
	for _, n := range w.order {
		if n != name && w.players[n].Alive {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[w.rng.Intn(len(candidates))], true
}
