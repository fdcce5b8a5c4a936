package decision

import (
	"context"
	"fmt"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/pressure"
)

// RulesConfig tunes the fallback director.
type RulesConfig struct {
	ProtectAt float64 // protect_player at or below this health
	HealAt    float64 // heal_player at or below this health
	// CalmSteps is how many consecutive normal-phase events pass before the
	// director escalates with spawn_mob. Zero disables escalation.
	CalmSteps   int
	EscalateMob string
}

func DefaultRulesConfig() RulesConfig {
	return RulesConfig{ProtectAt: 6, HealAt: 10, CalmSteps: 5, EscalateMob: "zombie"}
}

// Rules is a deterministic director used when no model is configured. It
// rescues badly hurt players first and otherwise escalates a calm run.
type Rules struct {
	cfg  RulesConfig
	calm int
}

func NewRules(cfg RulesConfig) *Rules {
	if cfg.EscalateMob == "" {
		cfg.EscalateMob = "zombie"
	}
	return &Rules{cfg: cfg}
}

func (r *Rules) Decide(_ context.Context, req Request) (protocol.Decision, error) {
	var calls []protocol.ToolCall
	for _, p := range req.Snapshot.Players {
		if !p.Alive {
			continue
		}
		switch {
		case p.Health <= r.cfg.ProtectAt:
			calls = append(calls, protocol.ToolCall{Name: catalogs.ToolProtectPlayer, Args: map[string]any{"player": p.Username}})
		case p.Health <= r.cfg.HealAt:
			calls = append(calls, protocol.ToolCall{Name: catalogs.ToolHealPlayer, Args: map[string]any{"player": p.Username}})
		}
	}
	if len(calls) > 0 {
		r.calm = 0
		d := Intervention(calls...)
		d.Speak = true
		d.Message = "Not yet."
		return d, nil
	}

	phase, _ := pressure.ParsePhase(req.Snapshot.Phase)
	if phase != pressure.Normal {
		r.calm = 0
		return protocol.Decision{}, nil
	}
	r.calm++
	if r.cfg.CalmSteps <= 0 || r.calm < r.cfg.CalmSteps {
		return protocol.Decision{}, nil
	}
	target := req.Envelope.Player()
	if !aliveIn(req.Snapshot, target) {
		target = firstAlive(req.Snapshot)
	}
	if target == "" {
		return protocol.Decision{}, nil
	}
	r.calm = 0
	d := Intervention(protocol.ToolCall{
		Name: catalogs.ToolSpawnMob,
		Args: map[string]any{"player": target, "mob": r.cfg.EscalateMob, "count": 2},
	})
	d.Speak = true
	d.Message = fmt.Sprintf("%s, you are too comfortable.", target)
	return d, nil
}

func aliveIn(s protocol.WorldSnapshot, name string) bool {
	p, ok := s.Player(name)
	return ok && p.Alive
}

func firstAlive(s protocol.WorldSnapshot) string {
	for _, p := range s.Players {
		if p.Alive {
			return p.Username
		}
	}
	return ""
}
