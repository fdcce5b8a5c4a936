// Package synthetic turns scenario events into the envelopes and command
// acknowledgements a live game bridge would produce.
package synthetic

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
)

// Step is one scenario event paired with its envelope.
type Step struct {
	Index    int
	Event    event.Event
	Envelope protocol.EventEnvelope
}

// Processor walks a fixed event list in order. Timestamps follow the
// simulated clock: each event's delay is added before it is emitted.
type Processor struct {
	events []event.Event
	next   int
	clock  float64
}

func NewProcessor(events []event.Event) *Processor {
	return &Processor{events: append([]event.Event(nil), events...)}
}

func (p *Processor) HasMore() bool  { return p.next < len(p.events) }
func (p *Processor) Remaining() int { return len(p.events) - p.next }
func (p *Processor) Len() int       { return len(p.events) }

// Next returns the next step, or false once every event has been emitted.
func (p *Processor) Next() (Step, bool) {
	if !p.HasMore() {
		return Step{}, false
	}
	e := p.events[p.next]
	p.clock += e.Wait()
	st := Step{Index: p.next, Event: e, Envelope: Envelope(e, p.clock)}
	p.next++
	return st, true
}

// Envelope maps a scenario event onto the live bridge's envelope shape.
func Envelope(e event.Event, ts float64) protocol.EventEnvelope {
	env := protocol.EventEnvelope{
		Data:      map[string]any{},
		Priority:  protocol.PriorityLow,
		Timestamp: ts,
	}
	if p := e.Actor(); p != "" {
		env.Data["player"] = p
	}
	switch ev := e.(type) {
	case event.Advancement:
		key := catalogs.NormalizeAdvancement(ev.Key)
		env.EventType = protocol.EventAdvancement
		env.Data["advancement"] = key
		env.Data["name"] = catalogs.ShortName(key)
		env.Priority = protocol.PriorityMedium
		switch key {
		case "minecraft:story/enter_the_nether", "minecraft:story/enter_the_end", "minecraft:end/kill_dragon":
			env.Priority = protocol.PriorityHigh
		}
	case event.Damage:
		env.EventType = protocol.EventPlayerDamaged
		env.Data["source"] = ev.Source
		env.Data["amount"] = ev.Amount
		env.Priority = protocol.PriorityMedium
		if ev.Amount >= 6 {
			env.Priority = protocol.PriorityHigh
		}
	case event.Inventory:
		item := catalogs.NormalizeItem(ev.Item)
		env.Data["item"] = item
		env.Data["count"] = ev.Count
		switch {
		case ev.Action == event.InventoryRemove:
			env.EventType = protocol.EventItemLost
		case catalogs.IsMilestoneItem(item):
			env.EventType = protocol.EventResourceMilestone
			env.Priority = protocol.PriorityHigh
		default:
			env.EventType = protocol.EventItemCollected
		}
	case event.Dimension:
		env.EventType = protocol.EventDimensionChange
		env.Data["from"] = string(ev.From)
		env.Data["to"] = string(ev.To)
		env.Priority = protocol.PriorityHigh
	case event.Chat:
		env.EventType = protocol.EventPlayerChat
		env.Data["message"] = ev.Message
	case event.Death:
		env.EventType = protocol.EventPlayerDeath
		env.Data["cause"] = ev.Cause
		env.Priority = protocol.PriorityCritical
	case event.DragonKill:
		env.EventType = protocol.EventDragonKilled
		env.Priority = protocol.PriorityCritical
	case event.MobKill:
		env.EventType = protocol.EventMobKilled
		env.Data["mob"] = ev.Mob
		env.Data["count"] = ev.Count
	case event.Structure:
		env.EventType = protocol.EventStructureFound
		env.Data["structure"] = catalogs.NormalizeStructure(ev.Structure)
		env.Priority = protocol.PriorityMedium
	case event.Health:
		env.EventType = protocol.EventHealthUpdate
		env.Data["health"] = ev.Health
		if ev.Food != nil {
			env.Data["food"] = *ev.Food
		}
		if ev.Health <= 6 {
			env.Priority = protocol.PriorityHigh
		}
	}
	return env
}
