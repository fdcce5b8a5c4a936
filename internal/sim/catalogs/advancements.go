package catalogs

import (
	"sort"
	"strings"
)

const advancementNamespace = "minecraft:"

// advancementUnlocks maps a parent advancement to the advancements it unlocks.
// Only the speedrun-relevant slice of the vanilla tree is modelled.
var advancementUnlocks = map[string][]string{
	"minecraft:story/mine_stone":    {"minecraft:story/upgrade_tools"},
	"minecraft:story/upgrade_tools": {"minecraft:story/smelt_iron"},
	"minecraft:story/smelt_iron": {
		"minecraft:story/lava_bucket",
		"minecraft:story/iron_tools",
		"minecraft:story/obtain_armor",
	},
	"minecraft:story/iron_tools":    {"minecraft:story/mine_diamond"},
	"minecraft:story/mine_diamond":  {"minecraft:story/shiny_gear", "minecraft:story/enchant_item"},
	"minecraft:story/lava_bucket":   {"minecraft:story/form_obsidian"},
	"minecraft:story/form_obsidian": {"minecraft:story/enter_the_nether"},
	"minecraft:story/enter_the_nether": {
		"minecraft:nether/obtain_blaze_rod",
		"minecraft:nether/find_fortress",
		"minecraft:nether/find_bastion",
		"minecraft:nether/obtain_crying_obsidian",
	},
	"minecraft:nether/obtain_blaze_rod": {"minecraft:story/follow_ender_eye", "minecraft:nether/brew_potion"},
	"minecraft:story/follow_ender_eye":  {"minecraft:story/enter_the_end"},
	"minecraft:story/enter_the_end":     {"minecraft:end/kill_dragon"},
	"minecraft:end/kill_dragon": {
		"minecraft:end/dragon_egg",
		"minecraft:end/enter_end_gateway",
		"minecraft:end/respawn_dragon",
		"minecraft:end/dragon_breath",
	},
	"minecraft:end/enter_end_gateway": {"minecraft:end/find_end_city"},
	"minecraft:end/find_end_city":     {"minecraft:end/elytra"},
}

// advancementParent is the inverted DAG: child -> required prerequisite.
var advancementParent = invertUnlocks(advancementUnlocks)

// CanonicalSpeedrun is the any% route used by presets and tests.
var CanonicalSpeedrun = []string{
	"minecraft:story/mine_stone",
	"minecraft:story/upgrade_tools",
	"minecraft:story/smelt_iron",
	"minecraft:story/lava_bucket",
	"minecraft:story/form_obsidian",
	"minecraft:story/enter_the_nether",
	"minecraft:nether/obtain_blaze_rod",
	"minecraft:story/follow_ender_eye",
	"minecraft:story/enter_the_end",
	"minecraft:end/kill_dragon",
}

func invertUnlocks(unlocks map[string][]string) map[string]string {
	out := make(map[string]string, len(unlocks)*2)
	for parent, children := range unlocks {
		for _, child := range children {
			out[child] = parent
		}
	}
	return out
}

// Prerequisite returns the advancement that must be earned before key.
func Prerequisite(key string) (string, bool) {
	p, ok := advancementParent[NormalizeAdvancement(key)]
	return p, ok
}

// KnownAdvancement reports whether key appears anywhere in the graph.
func KnownAdvancement(key string) bool {
	key = NormalizeAdvancement(key)
	if _, ok := advancementParent[key]; ok {
		return true
	}
	_, ok := advancementUnlocks[key]
	return ok
}

// NormalizeAdvancement accepts "story/mine_stone" or "mine_stone" shorthand and
// returns the namespaced key when it resolves unambiguously.
func NormalizeAdvancement(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, advancementNamespace) {
		return key
	}
	if strings.Contains(key, "/") {
		return advancementNamespace + key
	}
	match := ""
	for _, k := range AllAdvancements() {
		if strings.HasSuffix(k, "/"+key) {
			if match != "" {
				return key
			}
			match = k
		}
	}
	if match == "" {
		return key
	}
	return match
}

// AllAdvancements lists every advancement in the graph, sorted.
func AllAdvancements() []string {
	seen := map[string]bool{}
	for parent, children := range advancementUnlocks {
		seen[parent] = true
		for _, c := range children {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsValidProgression returns false iff some key's prerequisite has not
// appeared earlier in ordered. Keys outside the graph are ignored.
func IsValidProgression(ordered []string) bool {
	return len(FindMissingPrerequisites(ordered)) == 0
}

// FindMissingPrerequisites maps each violating key to its missing prerequisite.
func FindMissingPrerequisites(ordered []string) map[string]string {
	earned := make(map[string]bool, len(ordered))
	missing := map[string]string{}
	for _, raw := range ordered {
		key := NormalizeAdvancement(raw)
		if parent, ok := advancementParent[key]; ok && !earned[parent] {
			if _, dup := missing[key]; !dup {
				missing[key] = parent
			}
		}
		earned[key] = true
	}
	return missing
}

// ShortName strips the namespace and category: "minecraft:nether/obtain_blaze_rod" -> "obtain_blaze_rod".
func ShortName(key string) string {
	key = strings.TrimPrefix(key, advancementNamespace)
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
