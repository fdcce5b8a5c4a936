package player

import (
	"math"
	"sort"

	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/tarot"
)

const (
	MaxHealth         = 20.0
	MaxFood           = 20
	DefaultSaturation = 5.0
	DefaultAura       = 50.0
	MaxFear           = 100.0
	MaxAura           = 100.0
	SpawnY            = 64.0
)

type Role string

const (
	RoleRunner  Role = "runner"
	RoleMiner   Role = "miner"
	RoleFighter Role = "fighter"
	RoleSupport Role = "support"
	RoleBuilder Role = "builder"
)

var roles = []Role{RoleRunner, RoleMiner, RoleFighter, RoleSupport, RoleBuilder}

func Roles() []Role { return append([]Role(nil), roles...) }

func (r Role) Valid() bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}

type GameMode string

const (
	Survival  GameMode = "survival"
	Spectator GameMode = "spectator"
)

// Definition is how a scenario declares a party member.
type Definition struct {
	Name              string                 `json:"name"`
	Role              Role                   `json:"role"`
	StartingHealth    float64                `json:"starting_health,omitempty"`
	StartingInventory map[string]int         `json:"starting_inventory,omitempty"`
	// Tarot seeds starting archetype weights; unlisted cards start at zero.
	Tarot             map[tarot.Card]float64 `json:"tarot,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// State is one player's mutable run state. It is owned by a single world.
type State struct {
	Name string
	Role Role

	Health     float64
	MaxHealth  float64
	Food       int
	Saturation float64

	Dimension catalogs.Dimension
	Pos       Position

	Alive    bool
	GameMode GameMode

	advancements map[string]bool
	earnedOrder  []string
	Inventory    map[string]int
	// Armor holds the equipped item per slot ("" when empty).
	Armor [4]string

	MobKills      int
	DamageTaken   float64
	EnteredNether bool
	EnteredEnd    bool

	Fear float64
	Aura float64
}

func New(def Definition) *State {
	health := def.StartingHealth
	if health <= 0 || health > MaxHealth {
		health = MaxHealth
	}
	p := &State{
		Name:         def.Name,
		Role:         def.Role,
		Health:       health,
		MaxHealth:    MaxHealth,
		Food:         MaxFood,
		Saturation:   DefaultSaturation,
		Dimension:    catalogs.Overworld,
		Pos:          Position{Y: SpawnY},
		Alive:        true,
		GameMode:     Survival,
		advancements: map[string]bool{},
		Inventory:    map[string]int{},
		Aura:         DefaultAura,
	}
	items := make([]string, 0, len(def.StartingInventory))
	for it := range def.StartingInventory {
		items = append(items, it)
	}
	sort.Strings(items)
	for _, it := range items {
		p.AddItem(it, def.StartingInventory[it])
	}
	return p
}

func (p *State) HasAdvancement(key string) bool {
	return p.advancements[catalogs.NormalizeAdvancement(key)]
}

// Grant records key and reports whether it was new.
func (p *State) Grant(key string) bool {
	key = catalogs.NormalizeAdvancement(key)
	if key == "" || p.advancements[key] {
		return false
	}
	p.advancements[key] = true
	p.earnedOrder = append(p.earnedOrder, key)
	return true
}

// Advancements returns earned keys in the order they were earned.
func (p *State) Advancements() []string { return append([]string(nil), p.earnedOrder...) }

// AddItem adds count of item and returns the new total. Armor is equipped
// when it beats what the slot already holds.
func (p *State) AddItem(item string, count int) int {
	item = catalogs.NormalizeItem(item)
	if item == "" || count <= 0 {
		return p.Inventory[item]
	}
	p.Inventory[item] += count
	if slot, tier, ok := catalogs.ArmorPiece(item); ok {
		_, cur, has := catalogs.ArmorPiece(p.Armor[slot])
		if !has || tier > cur {
			p.Armor[slot] = item
		}
	}
	return p.Inventory[item]
}

// RemoveItem takes count of item and reports false, changing nothing, when the
// player cannot afford it.
func (p *State) RemoveItem(item string, count int) bool {
	item = catalogs.NormalizeItem(item)
	if count <= 0 || p.Inventory[item] < count {
		return false
	}
	p.Inventory[item] -= count
	if p.Inventory[item] == 0 {
		delete(p.Inventory, item)
		for i, worn := range p.Armor {
			if worn == item {
				p.Armor[i] = ""
			}
		}
	}
	return true
}

func (p *State) ItemCount(item string) int { return p.Inventory[catalogs.NormalizeItem(item)] }

// InventoryItems returns inventory keys sorted.
func (p *State) InventoryItems() []string {
	out := make([]string, 0, len(p.Inventory))
	for k := range p.Inventory {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *State) DiamondCount() int { return p.Inventory["diamond"] }

// ArmorTier is the highest tier across the four armor slots, 0 for none.
func (p *State) ArmorTier() int {
	best := 0
	for _, worn := range p.Armor {
		if _, tier, ok := catalogs.ArmorPiece(worn); ok && tier > best {
			best = tier
		}
	}
	return best
}

func (p *State) HasElytra() bool { return p.Inventory["elytra"] > 0 }

// SetHealth clamps h into [0, MaxHealth] and returns the stored value.
func (p *State) SetHealth(h float64) float64 {
	p.Health = clamp(h, 0, p.MaxHealth)
	return p.Health
}

func (p *State) SetFear(f float64) float64 {
	p.Fear = clamp(f, 0, MaxFear)
	return p.Fear
}

func (p *State) SetAura(a float64) float64 {
	p.Aura = clamp(a, 0, MaxAura)
	return p.Aura
}

func (p *State) SetFood(f int) int {
	p.Food = min(max(f, 0), MaxFood)
	return p.Food
}

// Clone returns a deep copy.
func (p *State) Clone() *State {
	cp := *p
	cp.advancements = make(map[string]bool, len(p.advancements))
	for k, v := range p.advancements {
		cp.advancements[k] = v
	}
	cp.earnedOrder = append([]string(nil), p.earnedOrder...)
	cp.Inventory = make(map[string]int, len(p.Inventory))
	for k, v := range p.Inventory {
		cp.Inventory[k] = v
	}
	return &cp
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
