package event

import "eris.ai/internal/sim/catalogs"

type Kind string

const (
	KindAdvancement Kind = "advancement"
	KindDamage      Kind = "damage"
	KindInventory   Kind = "inventory"
	KindDimension   Kind = "dimension"
	KindChat        Kind = "chat"
	KindDeath       Kind = "death"
	KindDragonKill  Kind = "dragon_kill"
	KindMobKill     Kind = "mob_kill"
	KindStructure   Kind = "structure"
	KindHealth      Kind = "health"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{
	KindAdvancement, KindDamage, KindInventory, KindDimension, KindChat,
	KindDeath, KindDragonKill, KindMobKill, KindStructure, KindHealth,
}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// DefaultDelay is the simulated gap in seconds before an event with no explicit delay.
const DefaultDelay = 5.0

// Event is the closed set of scripted occurrences a scenario can replay.
// Only types in this package implement it.
type Event interface {
	Kind() Kind
	// Actor is the player the event concerns; empty for world-global events.
	Actor() string
	// Wait is the simulated seconds that elapse before the event applies.
	Wait() float64

	isEvent()
}

// Base carries the fields shared by every event variant.
type Base struct {
	Player string  `json:"player,omitempty"`
	Delay  float64 `json:"delay,omitempty"`
}

func (b Base) Actor() string { return b.Player }

func (b Base) Wait() float64 {
	if b.Delay <= 0 {
		return DefaultDelay
	}
	return b.Delay
}

func (Base) isEvent() {}

type Advancement struct {
	Base
	Key string `json:"advancement"`
}

type Damage struct {
	Base
	Source string  `json:"source"`
	Amount float64 `json:"amount"`
}

type InventoryAction string

const (
	InventoryAdd    InventoryAction = "add"
	InventoryRemove InventoryAction = "remove"
)

type Inventory struct {
	Base
	Action InventoryAction `json:"action"`
	Item   string          `json:"item"`
	Count  int             `json:"count"`
}

type Dimension struct {
	Base
	From catalogs.Dimension `json:"from"`
	To   catalogs.Dimension `json:"to"`
}

type Chat struct {
	Base
	Message string `json:"message"`
}

type Death struct {
	Base
	Cause string `json:"cause,omitempty"`
}

// DragonKill is global; Player names the killer when known.
type DragonKill struct {
	Base
}

type MobKill struct {
	Base
	Mob   string `json:"mob"`
	Count int    `json:"count"`
}

type Structure struct {
	Base
	Structure string `json:"structure"`
}

// Health reports absolute vitals as the live plugin would.
type Health struct {
	Base
	Health float64 `json:"health"`
	Food   *int    `json:"food,omitempty"`
}

func (Advancement) Kind() Kind { return KindAdvancement }
func (Damage) Kind() Kind      { return KindDamage }
func (Inventory) Kind() Kind   { return KindInventory }
func (Dimension) Kind() Kind   { return KindDimension }
func (Chat) Kind() Kind        { return KindChat }
func (Death) Kind() Kind       { return KindDeath }
func (DragonKill) Kind() Kind  { return KindDragonKill }
func (MobKill) Kind() Kind     { return KindMobKill }
func (Structure) Kind() Kind   { return KindStructure }
func (Health) Kind() Kind      { return KindHealth }

// AppliesToDead reports whether the event still has an effect when its player is dead.
func AppliesToDead(e Event) bool {
	switch e.(type) {
	case DragonKill, Death:
		return true
	}
	return false
}

// Fields returns the variant-specific payload as a flat map, used by diffs and envelopes.
func Fields(e Event) map[string]any {
	out := map[string]any{}
	if p := e.Actor(); p != "" {
		out["player"] = p
	}
	switch ev := e.(type) {
	case Advancement:
		out["advancement"] = ev.Key
	case Damage:
		out["source"] = ev.Source
		out["amount"] = ev.Amount
	case Inventory:
		out["action"] = string(ev.Action)
		out["item"] = ev.Item
		out["count"] = ev.Count
	case Dimension:
		out["from"] = string(ev.From)
		out["to"] = string(ev.To)
	case Chat:
		out["message"] = ev.Message
	case Death:
		if ev.Cause != "" {
			out["cause"] = ev.Cause
		}
	case DragonKill:
	case MobKill:
		out["mob"] = ev.Mob
		out["count"] = ev.Count
	case Structure:
		out["structure"] = ev.Structure
	case Health:
		out["health"] = ev.Health
		if ev.Food != nil {
			out["food"] = *ev.Food
		}
	}
	return out
}
