package tarot

import (
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
)

// Nudge is one drift applied to the acting player's profile.
type Nudge struct {
	Card   Card
	Amount float64
}

type rule func(e event.Event) []Nudge

// rules is keyed by the closed event kind; kinds without an entry never drift.
var rules = map[event.Kind]rule{
	event.KindDeath: func(event.Event) []Nudge {
		return []Nudge{{Death, 0.3}}
	},
	event.KindDimension: func(e event.Event) []Nudge {
		switch e.(event.Dimension).To {
		case catalogs.Nether:
			return []Nudge{{Fool, 0.15}}
		case catalogs.TheEnd:
			return []Nudge{{Star, 0.2}}
		}
		return []Nudge{{Hermit, 0.05}}
	},
	event.KindDamage: func(e event.Event) []Nudge {
		d := e.(event.Damage)
		if d.Amount >= 6 {
			return []Nudge{{Tower, 0.1}}
		}
		return []Nudge{{Tower, 0.03}}
	},
	event.KindAdvancement: func(e event.Event) []Nudge {
		switch catalogs.NormalizeAdvancement(e.(event.Advancement).Key) {
		case "minecraft:end/kill_dragon":
			return []Nudge{{Emperor, 0.3}}
		case "minecraft:story/enchant_item", "minecraft:nether/brew_potion":
			return []Nudge{{Magician, 0.15}}
		case "minecraft:story/follow_ender_eye":
			return []Nudge{{Star, 0.1}}
		}
		return []Nudge{{Magician, 0.05}}
	},
	event.KindInventory: func(e event.Event) []Nudge {
		inv := e.(event.Inventory)
		if inv.Action != event.InventoryAdd {
			return nil
		}
		if catalogs.IsMilestoneItem(inv.Item) {
			return []Nudge{{Emperor, 0.08}}
		}
		return []Nudge{{Hermit, 0.02}}
	},
	event.KindChat: func(event.Event) []Nudge {
		return []Nudge{{Lovers, 0.05}}
	},
	event.KindMobKill: func(e event.Event) []Nudge {
		n := e.(event.MobKill).Count
		if n < 1 {
			n = 1
		}
		return []Nudge{{Emperor, 0.02 * float64(min(n, 5))}}
	},
	event.KindStructure: func(e event.Event) []Nudge {
		if catalogs.NormalizeStructure(e.(event.Structure).Structure) == catalogs.StructureBastion {
			return []Nudge{{Moon, 0.15}}
		}
		return []Nudge{{Hermit, 0.1}}
	},
	event.KindDragonKill: func(event.Event) []Nudge {
		return []Nudge{{Emperor, 0.4}}
	},
	event.KindHealth: func(e event.Event) []Nudge {
		if e.(event.Health).Health <= 4 {
			return []Nudge{{Moon, 0.05}}
		}
		return nil
	},
}

// NudgesFor returns the drifts a processed event should apply to its actor.
func NudgesFor(e event.Event) []Nudge {
	r, ok := rules[e.Kind()]
	if !ok {
		return nil
	}
	return r(e)
}

// Apply drifts p by every nudge for e and returns the nudges applied.
func Apply(p *Profile, e event.Event) []Nudge {
	nudges := NudgesFor(e)
	for _, n := range nudges {
		p.Drift(n.Card, n.Amount)
	}
	return nudges
}
