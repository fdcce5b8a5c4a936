package catalogs

import "strings"

type Dimension string

const (
	Overworld Dimension = "overworld"
	Nether    Dimension = "nether"
	TheEnd    Dimension = "the_end"
)

func ParseDimension(s string) (Dimension, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "minecraft:") {
	case "overworld":
		return Overworld, true
	case "nether", "the_nether":
		return Nether, true
	case "the_end", "end":
		return TheEnd, true
	default:
		return "", false
	}
}

// milestoneItems are pickups the live plugin reports as resource_milestone.
var milestoneItems = map[string]bool{
	"diamond":                true,
	"iron_ingot":             true,
	"obsidian":               true,
	"flint_and_steel":        true,
	"lava_bucket":            true,
	"blaze_rod":              true,
	"ender_pearl":            true,
	"ender_eye":              true,
	"elytra":                 true,
	"netherite_ingot":        true,
	"ancient_debris":         true,
	"golden_apple":           true,
	"diamond_pickaxe":        true,
	"enchanted_golden_apple": true,
}

func IsMilestoneItem(item string) bool { return milestoneItems[NormalizeItem(item)] }

func NormalizeItem(item string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), "minecraft:")
}

// Armor tiers, lowest first. Tier 0 means no armor.
var armorTiers = []string{"leather", "golden", "chainmail", "iron", "diamond", "netherite"}

type ArmorSlot int

const (
	SlotHead ArmorSlot = iota
	SlotChest
	SlotLegs
	SlotFeet
)

var armorSlotSuffix = map[string]ArmorSlot{
	"helmet":     SlotHead,
	"chestplate": SlotChest,
	"leggings":   SlotLegs,
	"boots":      SlotFeet,
}

// ArmorPiece parses "diamond_chestplate" into its slot and tier (1..6).
func ArmorPiece(item string) (slot ArmorSlot, tier int, ok bool) {
	item = NormalizeItem(item)
	i := strings.LastIndex(item, "_")
	if i <= 0 {
		return 0, 0, false
	}
	slot, ok = armorSlotSuffix[item[i+1:]]
	if !ok {
		return 0, 0, false
	}
	material := item[:i]
	if material == "turtle" && slot == SlotHead {
		return slot, 4, true
	}
	for idx, m := range armorTiers {
		if m == material {
			return slot, idx + 1, true
		}
	}
	return 0, 0, false
}

func ArmorTierName(tier int) string {
	if tier <= 0 || tier > len(armorTiers) {
		return "none"
	}
	return armorTiers[tier-1]
}

// Structures and the capability they require to be discoverable.
const (
	StructureVillage      = "village"
	StructureRuinedPortal = "ruined_portal"
	StructureFortress     = "fortress"
	StructureBastion      = "bastion"
	StructureStronghold   = "stronghold"
	StructureEndCity      = "end_city"
	StructureDesertTemple = "desert_temple"
	StructureShipwreck    = "shipwreck"
)

var knownStructures = map[string]bool{
	StructureVillage:      true,
	StructureRuinedPortal: true,
	StructureFortress:     true,
	StructureBastion:      true,
	StructureStronghold:   true,
	StructureEndCity:      true,
	StructureDesertTemple: true,
	StructureShipwreck:    true,
}

func NormalizeStructure(s string) string {
	s = NormalizeItem(s)
	switch s {
	case "nether_fortress", "fortress":
		return StructureFortress
	case "bastion_remnant", "bastion":
		return StructureBastion
	}
	return s
}

func KnownStructure(s string) bool { return knownStructures[NormalizeStructure(s)] }

// EyesForEndPortal is the number of eyes needed to fill an empty end portal frame.
const EyesForEndPortal = 12

// ObsidianForPortal is the minimum obsidian for a full nether portal frame.
const ObsidianForPortal = 10
