package catalogs

// Tool names accepted by the world's command channel.
const (
	ToolSpawnMob          = "spawn_mob"
	ToolGiveItem          = "give_item"
	ToolDamagePlayer      = "damage_player"
	ToolHealPlayer        = "heal_player"
	ToolTeleportPlayer    = "teleport_player"
	ToolApplyEffect       = "apply_effect"
	ToolModifyAura        = "modify_aura"
	ToolChangeWeather     = "change_weather"
	ToolSetTime           = "set_time"
	ToolSpawnTNT          = "spawn_tnt"
	ToolSpawnFallingBlock = "spawn_falling_block"
	ToolProtectPlayer     = "protect_player"
	ToolRescueTeleport    = "rescue_teleport"
	ToolRespawnOverride   = "respawn_override"

	ToolBroadcast       = "broadcast"
	ToolMessagePlayer   = "message_player"
	ToolPlaySound       = "play_sound"
	ToolShowTitle       = "show_title"
	ToolSpawnParticles  = "spawn_particles"
	ToolStrikeLightning = "strike_lightning"
	ToolFakeDeath       = "fake_death"
)

type ToolCategory string

const (
	ToolHarmful   ToolCategory = "harmful"
	ToolHelpful   ToolCategory = "helpful"
	ToolNarrative ToolCategory = "narrative"
	ToolUnknown   ToolCategory = "unknown"
)

var toolCategories = map[string]ToolCategory{
	ToolSpawnMob:          ToolHarmful,
	ToolDamagePlayer:      ToolHarmful,
	ToolSpawnTNT:          ToolHarmful,
	ToolSpawnFallingBlock: ToolHarmful,
	ToolTeleportPlayer:    ToolHarmful,
	ToolStrikeLightning:   ToolHarmful,
	ToolChangeWeather:     ToolHarmful,

	ToolHealPlayer:      ToolHelpful,
	ToolProtectPlayer:   ToolHelpful,
	ToolRescueTeleport:  ToolHelpful,
	ToolGiveItem:        ToolHelpful,
	ToolRespawnOverride: ToolHelpful,

	ToolBroadcast:      ToolNarrative,
	ToolMessagePlayer:  ToolNarrative,
	ToolPlaySound:      ToolNarrative,
	ToolShowTitle:      ToolNarrative,
	ToolSpawnParticles: ToolNarrative,
	ToolFakeDeath:      ToolNarrative,
	ToolApplyEffect:    ToolNarrative,
	ToolModifyAura:     ToolNarrative,
	ToolSetTime:        ToolNarrative,
}

func CategoryOf(tool string) ToolCategory {
	if c, ok := toolCategories[tool]; ok {
		return c
	}
	return ToolUnknown
}

func KnownTool(tool string) bool {
	_, ok := toolCategories[tool]
	return ok
}

// ToolNames returns every known tool in a stable order.
func ToolNames() []string {
	return []string{
		ToolSpawnMob, ToolGiveItem, ToolDamagePlayer, ToolHealPlayer, ToolTeleportPlayer,
		ToolApplyEffect, ToolModifyAura, ToolChangeWeather, ToolSetTime, ToolSpawnTNT,
		ToolSpawnFallingBlock, ToolProtectPlayer, ToolRescueTeleport, ToolRespawnOverride,
		ToolBroadcast, ToolMessagePlayer, ToolPlaySound, ToolShowTitle, ToolSpawnParticles,
		ToolStrikeLightning, ToolFakeDeath,
	}
}

var harmfulEffects = map[string]bool{
	"blindness":      true,
	"darkness":       true,
	"hunger":         true,
	"levitation":     true,
	"mining_fatigue": true,
	"nausea":         true,
	"poison":         true,
	"slowness":       true,
	"weakness":       true,
	"wither":         true,
}

func IsHarmfulEffect(effect string) bool { return harmfulEffects[NormalizeItem(effect)] }

var weatherStates = map[string]bool{"clear": true, "rain": true, "thunder": true}

func KnownWeather(w string) bool { return weatherStates[w] }

// TimeOfDay presets accepted by set_time, in game ticks.
var timePresets = map[string]int{
	"day":      1000,
	"noon":     6000,
	"sunset":   12000,
	"night":    13000,
	"midnight": 18000,
}

func TimePreset(name string) (int, bool) {
	t, ok := timePresets[name]
	return t, ok
}
