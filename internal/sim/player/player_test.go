package player

import (
	"math"
	"testing"

	"eris.ai/internal/sim/catalogs"
)

func TestNewDefaults(t *testing.T) {
	p := New(Definition{Name: "Alice", Role: RoleRunner})
	if p.Health != MaxHealth || p.Food != MaxFood || p.Aura != DefaultAura || p.Fear != 0 {
		t.Fatalf("unexpected vitals: %+v", p)
	}
	if !p.Alive || p.Dimension != catalogs.Overworld || p.Pos.Y != SpawnY {
		t.Fatalf("unexpected spawn: %+v", p)
	}
	if p.ArmorTier() != 0 || p.DiamondCount() != 0 || p.HasElytra() {
		t.Fatalf("fresh player should have no gear")
	}
}

func TestStartingHealthOutOfRangeFallsBack(t *testing.T) {
	if got := New(Definition{Name: "Bob", StartingHealth: 40}).Health; got != MaxHealth {
		t.Fatalf("health=%v", got)
	}
	if got := New(Definition{Name: "Bob", StartingHealth: 6}).Health; got != 6 {
		t.Fatalf("health=%v", got)
	}
}

func TestArmorAutoEquip(t *testing.T) {
	p := New(Definition{Name: "Alice", StartingInventory: map[string]int{
		"iron_chestplate": 1,
		"leather_boots":   1,
		"diamond":         3,
	}})
	if p.ArmorTier() != 4 {
		t.Fatalf("iron is tier 4, got %d", p.ArmorTier())
	}
	p.AddItem("minecraft:golden_chestplate", 1)
	if p.Armor[catalogs.SlotChest] != "iron_chestplate" {
		t.Fatalf("gold should not replace iron: %v", p.Armor)
	}
	p.AddItem("diamond_helmet", 1)
	if p.ArmorTier() != 5 {
		t.Fatalf("diamond helmet should raise tier to 5, got %d", p.ArmorTier())
	}
	if p.DiamondCount() != 3 {
		t.Fatalf("diamonds=%d", p.DiamondCount())
	}
	if !p.RemoveItem("diamond_helmet", 1) || p.ArmorTier() != 4 {
		t.Fatalf("removing the helmet should unequip it, tier=%d", p.ArmorTier())
	}
}

func TestRemoveItemInsufficient(t *testing.T) {
	p := New(Definition{Name: "Alice"})
	p.AddItem("obsidian", 3)
	if p.RemoveItem("obsidian", 4) {
		t.Fatalf("remove should fail")
	}
	if p.ItemCount("obsidian") != 3 {
		t.Fatalf("failed remove must not change inventory")
	}
	if !p.RemoveItem("obsidian", 3) {
		t.Fatalf("remove should succeed")
	}
	if _, ok := p.Inventory["obsidian"]; ok {
		t.Fatalf("empty stacks are deleted")
	}
}

func TestClampsAndGrant(t *testing.T) {
	p := New(Definition{Name: "Alice"})
	if p.SetHealth(-3) != 0 || p.SetHealth(99) != MaxHealth {
		t.Fatalf("health clamp failed")
	}
	if got := p.SetHealth(math.NaN()); got != 0 {
		t.Fatalf("NaN health clamped to %v", got)
	}
	if p.SetFear(150) != MaxFear || p.SetAura(-1) != 0 || p.SetFood(30) != MaxFood {
		t.Fatalf("scalar clamps failed")
	}
	if !p.Grant("mine_stone") || p.Grant("minecraft:story/mine_stone") {
		t.Fatalf("grant should dedupe across shorthand")
	}
	if got := p.Advancements(); len(got) != 1 || got[0] != "minecraft:story/mine_stone" {
		t.Fatalf("advancements=%v", got)
	}
	cp := p.Clone()
	cp.AddItem("dirt", 1)
	cp.Grant("upgrade_tools")
	if p.ItemCount("dirt") != 0 || p.HasAdvancement("upgrade_tools") {
		t.Fatalf("clone shares state")
	}
}
