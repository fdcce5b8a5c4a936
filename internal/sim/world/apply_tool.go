package world

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/trace"
)

type toolHandler func(w *World, d *trace.Diff, a args) (pressure.Tool, bool)

var toolHandlers map[string]toolHandler

func init() {
	toolHandlers = map[string]toolHandler{
		catalogs.ToolSpawnMob:          (*World).toolSpawnMob,
		catalogs.ToolGiveItem:          (*World).toolGiveItem,
		catalogs.ToolDamagePlayer:      (*World).toolDamagePlayer,
		catalogs.ToolHealPlayer:        (*World).toolHealPlayer,
		catalogs.ToolTeleportPlayer:    (*World).toolTeleportPlayer,
		catalogs.ToolApplyEffect:       (*World).toolApplyEffect,
		catalogs.ToolModifyAura:        (*World).toolModifyAura,
		catalogs.ToolChangeWeather:     (*World).toolChangeWeather,
		catalogs.ToolSetTime:           (*World).toolSetTime,
		catalogs.ToolSpawnTNT:          (*World).toolSpawnTNT,
		catalogs.ToolSpawnFallingBlock: (*World).toolSpawnFallingBlock,
		catalogs.ToolProtectPlayer:     (*World).toolProtectPlayer,
		catalogs.ToolRescueTeleport:    (*World).toolRescueTeleport,
		catalogs.ToolRespawnOverride:   (*World).toolRespawnOverride,
		catalogs.ToolStrikeLightning:   (*World).toolStrikeLightning,
		catalogs.ToolFakeDeath:         (*World).toolFakeDeath,
		catalogs.ToolBroadcast:         (*World).toolNarrative,
		catalogs.ToolMessagePlayer:     (*World).toolNarrative,
		catalogs.ToolPlaySound:         (*World).toolNarrative,
		catalogs.ToolShowTitle:         (*World).toolNarrative,
		catalogs.ToolSpawnParticles:    (*World).toolNarrative,
	}
}

// ApplyToolCall applies a decision-layer command at the current clock.
// Unknown tools and invalid targets are absorbed as zero-change diffs.
func (w *World) ApplyToolCall(call protocol.ToolCall) trace.Diff {
	a := args(call.Args)
	d := w.begin(trace.SourceToolCall, call.Name, call.Target(), a.clone(), 0)

	switch h, ok := toolHandlers[call.Name]; {
	case w.state == Ended:
		d.NoOp(protocol.ReasonRunEnded)
	case !ok:
		d.NoOp(protocol.ReasonUnknownTool)
		w.logf("t=%.1f unknown tool %q absorbed", w.clock, call.Name)
	default:
		if in, applied := h(w, d, a); applied {
			in.Name = call.Name
			w.addTension(d, pressure.ToolTension(in))
			w.addKarma(d, pressure.ToolKarma(in))
		}
	}

	rec := w.commit(d)
	w.toolHistory = append(w.toolHistory, ToolRecord{Call: call, T: rec.T, Seq: rec.Seq, Reason: rec.Reason})
	return rec
}

// target resolves the "player" argument to a living player.
func (w *World) target(d *trace.Diff, a args) (*player.State, bool) {
	name := a.str("player", "")
	if name == "" {
		d.NoOp(protocol.ReasonInvalidArgs)
		return nil, false
	}
	p := w.players[name]
	if p == nil {
		d.NoOp(protocol.ReasonUnknownPlayer)
		return nil, false
	}
	if !p.Alive {
		d.NoOp(protocol.ReasonPlayerDead)
		return nil, false
	}
	return p, true
}

func (w *World) count(d *trace.Diff, a args) (int, bool) {
	n, ok := a.integer("count", 1)
	if !ok || n < 1 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return 0, false
	}
	return min(n, w.cfg.MaxMobsPerCall), true
}

func (w *World) toolSpawnMob(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	n, ok := w.count(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	mob := catalogs.NormalizeItem(a.str("mob_type", a.str("mob", "zombie")))
	old := len(w.mobs)
	w.mobs = append(w.mobs, SpawnedMob{
		MobType:       mob,
		Target:        p.Name,
		Count:         n,
		AliveCount:    n,
		SpawnedByEris: true,
		SpawnedAt:     w.clock,
	})
	d.AddChange("spawned_mobs", old, len(w.mobs))
	w.addFear(d, p, float64(n)*2)
	return pressure.Tool{Count: n}, true
}

func (w *World) toolGiveItem(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	item := catalogs.NormalizeItem(a.str("item", ""))
	n, ok := a.integer("count", 1)
	if item == "" || !ok || n < 1 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	w.addItem(d, p, item, n)
	before := w.caps
	w.caps.ObserveItem(item, n)
	w.recordCapabilities(d, before)
	return pressure.Tool{Count: n}, true
}

// toolDamagePlayer never kills: damage is capped at health-1.
func (w *World) toolDamagePlayer(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	amount, ok := a.num("amount", 0)
	if !ok || amount <= 0 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	dealt := min(amount, p.Health-1)
	if dealt <= 0 {
		return pressure.Tool{}, false
	}
	w.setHealth(d, p, p.Health-dealt)
	old := p.DamageTaken
	p.DamageTaken += dealt
	d.AddPlayerChange(p.Name, "damage_taken", old, p.DamageTaken)
	w.addFear(d, p, w.cfg.DamageFear*dealt)
	return pressure.Tool{Amount: amount}, true
}

func (w *World) toolHealPlayer(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	if p.Health >= p.MaxHealth && p.Fear == 0 {
		return pressure.Tool{}, false
	}
	if a.boolean("full", false) {
		w.setHealth(d, p, p.MaxHealth)
		w.addFear(d, p, -10)
	} else {
		w.setHealth(d, p, p.Health+p.MaxHealth*0.5)
		w.addFear(d, p, -5)
	}
	return pressure.Tool{}, true
}

func (w *World) toolTeleportPlayer(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	mode := a.str("mode", "random")
	switch mode {
	case "random":
		pos := p.Pos
		pos.X += float64(w.rng.Intn(513) - 256)
		pos.Z += float64(w.rng.Intn(513) - 256)
		w.setPosition(d, p, pos)
		w.addFear(d, p, 3)
	case "swap":
		otherName := a.str("target", "")
		if otherName == "" {
			var found bool
			if otherName, found = w.pickOther(p.Name); !found {
				return pressure.Tool{}, false
			}
		}
		other := w.players[otherName]
		if other == nil || !other.Alive || other == p {
			d.NoOp(protocol.ReasonInvalidArgs)
			return pressure.Tool{}, false
		}
		pPos, oPos := p.Pos, other.Pos
		pDim, oDim := p.Dimension, other.Dimension
		w.setPosition(d, p, oPos)
		w.setPosition(d, other, pPos)
		if pDim != oDim {
			d.AddPlayerChange(p.Name, "dimension", string(pDim), string(oDim))
			d.AddPlayerChange(other.Name, "dimension", string(oDim), string(pDim))
			p.Dimension, other.Dimension = oDim, pDim
		}
		w.addFear(d, p, 3)
		w.addFear(d, other, 3)
	case "isolate":
		pos := p.Pos
		if w.rng.Intn(2) == 0 {
			pos.X += 1000
		} else {
			pos.X -= 1000
		}
		w.setPosition(d, p, pos)
		w.addFear(d, p, 10)
	default:
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	return pressure.Tool{Mode: mode}, true
}

func (w *World) toolApplyEffect(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	effect := catalogs.NormalizeItem(a.str("effect", ""))
	amp, okAmp := a.integer("amplifier", 0)
	dur, okDur := a.num("duration", w.cfg.DefaultEffectSeconds)
	if effect == "" || !okAmp || !okDur || amp < 0 || dur <= 0 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	key := effectKey(p.Name, effect)
	var oldAmp, oldLeft any
	if prev, exists := w.effects[key]; exists {
		oldAmp, oldLeft = prev.Amplifier, prev.RemainingSeconds
	}
	w.effects[key] = &ActiveEffect{
		Player:           p.Name,
		EffectType:       effect,
		Amplifier:        amp,
		Duration:         dur,
		RemainingSeconds: dur,
		AppliedByEris:    true,
	}
	d.AddPlayerChange(p.Name, "effects."+effect, oldAmp, amp)
	d.AddPlayerChange(p.Name, "effects."+effect+".remaining", oldLeft, dur)
	if catalogs.IsHarmfulEffect(effect) {
		w.addFear(d, p, 3)
	}
	return pressure.Tool{Mode: effect}, true
}

func (w *World) toolModifyAura(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	key := "delta"
	if !a.has(key) {
		key = "amount"
	}
	delta, ok := a.num(key, 0)
	if !ok || !a.has(key) {
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	old := p.Aura
	d.AddPlayerChange(p.Name, "aura", old, p.SetAura(old+delta))
	return pressure.Tool{Amount: delta}, true
}

func (w *World) toolChangeWeather(d *trace.Diff, a args) (pressure.Tool, bool) {
	weather := a.str("weather", a.str("state", ""))
	if !catalogs.KnownWeather(weather) {
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	}
	if weather == w.weather {
		return pressure.Tool{}, false
	}
	d.AddChange("weather", w.weather, weather)
	w.weather = weather
	return pressure.Tool{Mode: weather}, true
}

func (w *World) toolSetTime(d *trace.Diff, a args) (pressure.Tool, bool) {
	raw := a.str("time", "")
	t, ok := catalogs.TimePreset(raw)
	if !ok {
		n, numOK := a.integer("time", -1)
		if !numOK || n < 0 || n > 24000 {
			d.NoOp(protocol.ReasonInvalidArgs)
			return pressure.Tool{}, false
		}
		t = n
	}
	if t == w.timeOfDay {
		return pressure.Tool{}, false
	}
	d.AddChange("time_of_day", w.timeOfDay, t)
	w.timeOfDay = t
	return pressure.Tool{}, true
}

func (w *World) toolSpawnTNT(d *trace.Diff, a args) (pressure.Tool, bool) {
	return w.fearOnlyHazard(d, a, 5)
}

func (w *World) toolSpawnFallingBlock(d *trace.Diff, a args) (pressure.Tool, bool) {
	return w.fearOnlyHazard(d, a, 2)
}

// fearOnlyHazard models hazards whose damage is not simulated.
func (w *World) fearOnlyHazard(d *trace.Diff, a args, fearPer float64) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	n, ok := w.count(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	w.addFear(d, p, fearPer*float64(n))
	return pressure.Tool{Count: n}, true
}

func (w *World) toolProtectPlayer(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	w.setHealth(d, p, p.MaxHealth)
	w.addFear(d, p, -30)
	return pressure.Tool{}, true
}

func (w *World) toolRescueTeleport(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	w.addFear(d, p, -20)
	return pressure.Tool{}, true
}

// toolRespawnOverride is the only way back from death. When the revived
// player was the last one dead and no victory occurred, the run resumes.
func (w *World) toolRespawnOverride(d *trace.Diff, a args) (pressure.Tool, bool) {
	name := a.str("player", "")
	p := w.players[name]
	switch {
	case name == "":
		d.NoOp(protocol.ReasonInvalidArgs)
		return pressure.Tool{}, false
	case p == nil:
		d.NoOp(protocol.ReasonUnknownPlayer)
		return pressure.Tool{}, false
	case p.Alive:
		return pressure.Tool{}, false
	case w.respawns >= max(w.cfg.MaxRespawnOverrides, 0):
		d.NoOp(protocol.ReasonRespawnCap)
		return pressure.Tool{}, false
	}
	d.AddPlayerChange(p.Name, "alive", false, true)
	p.Alive = true
	d.AddPlayerChange(p.Name, "game_mode", string(p.GameMode), string(player.Survival))
	p.GameMode = player.Survival
	w.setHealth(d, p, p.MaxHealth)
	w.setFood(d, p, player.MaxFood)
	if p.Dimension != catalogs.Overworld {
		d.AddPlayerChange(p.Name, "dimension", string(p.Dimension), string(catalogs.Overworld))
		p.Dimension = catalogs.Overworld
	}
	w.setPosition(d, p, player.Position{Y: player.SpawnY})
	d.AddChange("respawn_overrides", w.respawns, w.respawns+1)
	w.respawns++
	if w.state == Ending && !w.victory && w.deadCount() == 0 {
		w.setState(d, Active)
	}
	w.cfg.Logger.Printf("run %s: %s respawned by override at t=%.1f", w.cfg.RunID, p.Name, w.clock)
	return pressure.Tool{}, true
}

func (w *World) toolStrikeLightning(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	w.addFear(d, p, 5)
	return pressure.Tool{}, true
}

// toolFakeDeath broadcasts a false death; everyone else is frightened.
func (w *World) toolFakeDeath(d *trace.Diff, a args) (pressure.Tool, bool) {
	p, ok := w.target(d, a)
	if !ok {
		return pressure.Tool{}, false
	}
	for _, name := range w.order {
		if other := w.players[name]; other != p && other.Alive {
			w.addFear(d, other, 5)
		}
	}
	return pressure.Tool{}, true
}

func (w *World) toolNarrative(d *trace.Diff, a args) (pressure.Tool, bool) {
	d.NoOp(protocol.ReasonNarrativeOnly)
	return pressure.Tool{}, true
}
