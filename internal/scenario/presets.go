package scenario

import (
	"sort"

	"eris.ai/internal/sim/player"
)

const (
	PresetSpeedTrio    = "speed_trio"
	PresetDuoRush      = "duo_rush"
	PresetSoloHardcore = "solo_hardcore"
	PresetQuadSquad    = "quad_squad"
	PresetChaosFive    = "chaos_five"
)

var presets = map[string][]player.Definition{
	PresetSpeedTrio: {
		{Name: "Alice", Role: player.RoleRunner},
		{Name: "Bob", Role: player.RoleMiner},
		{Name: "Charlie", Role: player.RoleFighter},
	},
	PresetDuoRush: {
		{Name: "Alice", Role: player.RoleRunner},
		{Name: "Bob", Role: player.RoleFighter},
	},
	PresetSoloHardcore: {
		{Name: "Alice", Role: player.RoleRunner, StartingInventory: map[string]int{"bread": 4}},
	},
	PresetQuadSquad: {
		{Name: "Alice", Role: player.RoleRunner},
		{Name: "Bob", Role: player.RoleMiner},
		{Name: "Charlie", Role: player.RoleFighter},
		{Name: "Dana", Role: player.RoleSupport},
	},
	PresetChaosFive: {
		{Name: "Alice", Role: player.RoleRunner},
		{Name: "Bob", Role: player.RoleMiner},
		{Name: "Charlie", Role: player.RoleFighter},
		{Name: "Dana", Role: player.RoleSupport},
		{Name: "Eve", Role: player.RoleBuilder},
	},
}

// Preset expands a preset name into fresh player definitions.
func Preset(name string) ([]player.Definition, bool) {
	defs, ok := presets[name]
	if !ok {
		return nil, false
	}
	out := make([]player.Definition, len(defs))
	for i, d := range defs {
		out[i] = d
		if d.StartingInventory != nil {
			out[i].StartingInventory = make(map[string]int, len(d.StartingInventory))
			for k, v := range d.StartingInventory {
				out[i].StartingInventory[k] = v
			}
		}
	}
	return out, true
}

func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
