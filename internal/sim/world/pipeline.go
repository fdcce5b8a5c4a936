package world

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/trace"
)

// begin opens a diff for one action. wait advances the clock first.
func (w *World) begin(src trace.SourceType, name, actor string, args map[string]any, wait float64) *trace.Diff {
	d := trace.NewDiff(src, name, actor)
	d.Args = args
	if wait > 0 {
		w.advance(d, wait)
	}
	d.T = w.clock
	d.FractureBefore = w.Fracture()
	d.OldPhase = w.phase
	if w.state == Idle {
		w.setState(d, Active)
	}
	return d
}

// advance moves the clock and expires effects whose time ran out.
func (w *World) advance(d *trace.Diff, seconds float64) {
	w.clock += seconds
	for _, k := range w.effectKeys() {
		eff := w.effects[k]
		eff.RemainingSeconds -= seconds
		if eff.RemainingSeconds <= 0 {
			delete(w.effects, k)
			d.AddPlayerChange(eff.Player, "effects."+eff.EffectType, eff.Amplifier, nil)
			w.logf("t=%.1f effect %s on %s expired", w.clock, eff.EffectType, eff.Player)
		}
	}
}

// commit derives fracture and phase, applies latches and appends d to the trace.
func (w *World) commit(d *trace.Diff) trace.Diff {
	after := w.Fracture()
	next := pressure.PhaseFor(after)
	d.FractureAfter = after
	d.NewPhase = next
	if next != d.OldPhase {
		d.PhaseChanged = true
		d.AddChange("phase", d.OldPhase.String(), next.String())
		w.logf("t=%.1f phase %s -> %s (fracture %.1f)", w.clock, d.OldPhase, next, after)
	}
	w.phase = next

	apocalypse, hard := w.pressure.Latch(after)
	if apocalypse {
		d.ApocalypseTriggered = true
		d.AddChange("apocalypse_triggered", false, true)
		w.cfg.Logger.Printf("run %s: apocalypse triggered at fracture %.1f", w.cfg.RunID, after)
	}
	if hard {
		d.HardApocalypse = true
		d.AddChange("hard_apocalypse", false, true)
		w.cfg.Logger.Printf("run %s: hard apocalypse at fracture %.1f", w.cfg.RunID, after)
	}
	if !d.HasChanges() {
		d.NoOp(protocol.ReasonNoEffect)
	}
	return w.trace.Add(d)
}

func (w *World) setState(d *trace.Diff, next GameState) {
	if w.state == next {
		return
	}
	d.AddChange("game_state", w.state.String(), next.String())
	w.state = next
}

func (w *World) addTension(d *trace.Diff, delta float64) {
	if delta == 0 {
		return
	}
	old := w.pressure.Tension
	w.pressure.AddTension(delta)
	d.AddChange("tension", old, w.pressure.Tension)
}

func (w *World) addKarma(d *trace.Diff, delta float64) {
	if delta == 0 {
		return
	}
	old := w.pressure.Karma
	w.pressure.AddKarma(delta)
	d.AddChange("karma", old, w.pressure.Karma)
}

func (w *World) setHealth(d *trace.Diff, p *player.State, h float64) {
	old := p.Health
	d.AddPlayerChange(p.Name, "health", old, p.SetHealth(h))
}

func (w *World) addFear(d *trace.Diff, p *player.State, delta float64) {
	old := p.Fear
	d.AddPlayerChange(p.Name, "fear", old, p.SetFear(old+delta))
}

func (w *World) setFood(d *trace.Diff, p *player.State, food int) {
	old := p.Food
	d.AddPlayerChange(p.Name, "food", old, p.SetFood(food))
}

func (w *World) addItem(d *trace.Diff, p *player.State, item string, count int) {
	old := p.ItemCount(item)
	oldTier := p.ArmorTier()
	next := p.AddItem(item, count)
	d.AddPlayerChange(p.Name, "inventory."+item, old, next)
	d.AddPlayerChange(p.Name, "armor_tier", oldTier, p.ArmorTier())
}

func (w *World) setPosition(d *trace.Diff, p *player.State, pos player.Position) {
	old := p.Pos
	p.Pos = pos
	d.AddPlayerChange(p.Name, "position", old, pos)
}

// kill marks p dead and moves the run to ENDING.
func (w *World) kill(d *trace.Diff, p *player.State, cause string) {
	if !p.Alive {
		return
	}
	w.setHealth(d, p, 0)
	d.AddPlayerChange(p.Name, "alive", true, false)
	p.Alive = false
	d.AddPlayerChange(p.Name, "game_mode", string(p.GameMode), string(player.Spectator))
	p.GameMode = player.Spectator
	d.CausedDeath = true
	w.setState(d, Ending)
	w.cfg.Logger.Printf("run %s: %s died (%s) at t=%.1f", w.cfg.RunID, p.Name, cause, w.clock)
}
