package pressure

import (
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
)

// EventTension is the tension contribution of a scripted event.
func EventTension(e event.Event) float64 {
	switch ev := e.(type) {
	case event.Damage:
		return ev.Amount * 0.5
	case event.Death:
		return 50
	case event.DragonKill:
		return -30
	case event.Dimension:
		if ev.To == catalogs.Nether || ev.To == catalogs.TheEnd {
			return 5
		}
	case event.Structure:
		return 3
	}
	return 0
}

// Tool is the subset of a tool call the pressure tables read.
type Tool struct {
	Name   string
	Count  int
	Amount float64
	Mode   string
}

func (t Tool) count() float64 {
	if t.Count < 1 {
		return 1
	}
	return float64(t.Count)
}

// ToolTension is the tension contribution of an applied tool call.
func ToolTension(t Tool) float64 {
	switch t.Name {
	case catalogs.ToolSpawnMob:
		return t.count() * 2
	case catalogs.ToolDamagePlayer:
		return t.Amount
	case catalogs.ToolSpawnTNT:
		return t.count() * 5
	case catalogs.ToolSpawnFallingBlock:
		return t.count() * 2
	case catalogs.ToolTeleportPlayer:
		if t.Mode == "isolate" {
			return 5
		}
		return 2
	case catalogs.ToolStrikeLightning:
		return 3
	case catalogs.ToolHealPlayer:
		return -5
	case catalogs.ToolProtectPlayer:
		return -10
	case catalogs.ToolGiveItem:
		return -2
	}
	return 0
}

// ToolKarma is the debt a tool call adds to (or pays off from) the karma pool.
func ToolKarma(t Tool) float64 {
	switch t.Name {
	case catalogs.ToolSpawnMob, catalogs.ToolSpawnFallingBlock:
		return t.count()
	case catalogs.ToolSpawnTNT:
		return t.count() * 3
	case catalogs.ToolDamagePlayer:
		return t.Amount * 0.5
	case catalogs.ToolStrikeLightning:
		return 4
	case catalogs.ToolTeleportPlayer:
		if t.Mode == "isolate" {
			return 3
		}
		return 1
	case catalogs.ToolChangeWeather:
		if t.Mode == "thunder" {
			return 1
		}
	case catalogs.ToolFakeDeath:
		return 2
	case catalogs.ToolHealPlayer:
		return -3
	case catalogs.ToolProtectPlayer:
		return -5
	case catalogs.ToolRescueTeleport:
		return -4
	case catalogs.ToolGiveItem:
		return -1
	case catalogs.ToolRespawnOverride:
		return -10
	}
	return 0
}
