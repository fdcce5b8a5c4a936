package world

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/tarot"
	"eris.ai/internal/sim/trace"
)

// ApplyEvent advances the clock by the event's delay, applies it and records
// the resulting diff. Soft failures become zero-change diffs with a reason.
func (w *World) ApplyEvent(e event.Event) trace.Diff {
	d := w.begin(trace.SourceEvent, string(e.Kind()), e.Actor(), event.Fields(e), e.Wait())
	w.eventHistory = append(w.eventHistory, e)

	if w.applyEvent(d, e) {
		w.addTension(d, pressure.EventTension(e))
		w.driftTarot(d, e)
		before := w.caps
		w.caps.Observe(e)
		w.recordCapabilities(d, before)
	}
	return w.commit(d)
}

// applyEvent dispatches over the closed event set and reports whether the
// event took effect.
func (w *World) applyEvent(d *trace.Diff, e event.Event) bool {
	var p *player.State
	if name := e.Actor(); name != "" {
		p = w.players[name]
		if p == nil {
			d.NoOp(protocol.ReasonUnknownPlayer)
			return false
		}
		if !p.Alive && !event.AppliesToDead(e) {
			d.NoOp(protocol.ReasonPlayerDead)
			return false
		}
	}
	if p == nil {
		if _, ok := e.(event.DragonKill); !ok {
			d.NoOp(protocol.ReasonUnknownPlayer)
			return false
		}
	}

	switch ev := e.(type) {
	case event.Advancement:
		return w.onAdvancement(d, p, ev)
	case event.Damage:
		return w.onDamage(d, p, ev)
	case event.Inventory:
		return w.onInventory(d, p, ev)
	case event.Dimension:
		return w.onDimension(d, p, ev)
	case event.Chat:
		return true
	case event.Death:
		return w.onDeath(d, p, ev)
	case event.DragonKill:
		return w.onDragonKill(d, p)
	case event.MobKill:
		return w.onMobKill(d, p, ev)
	case event.Structure:
		return w.onStructure(d, ev)
	case event.Health:
		return w.onHealth(d, p, ev)
	}
	d.NoOp(protocol.ReasonInvalidArgs)
	return false
}

func (w *World) onAdvancement(d *trace.Diff, p *player.State, ev event.Advancement) bool {
	key := catalogs.NormalizeAdvancement(ev.Key)
	if key == "" {
		d.NoOp(protocol.ReasonInvalidArgs)
		return false
	}
	if !p.Grant(key) {
		return false
	}
	d.AddPlayerChange(p.Name, "advancements."+key, false, true)
	return true
}

func (w *World) onDamage(d *trace.Diff, p *player.State, ev event.Damage) bool {
	if ev.Amount <= 0 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return false
	}
	before := p.Health
	w.setHealth(d, p, before-ev.Amount)
	taken := before - p.Health
	old := p.DamageTaken
	p.DamageTaken += taken
	d.AddPlayerChange(p.Name, "damage_taken", old, p.DamageTaken)
	w.addFear(d, p, w.cfg.DamageFear*ev.Amount)
	if p.Health <= 0 {
		w.kill(d, p, ev.Source)
	}
	return true
}

func (w *World) onInventory(d *trace.Diff, p *player.State, ev event.Inventory) bool {
	item := catalogs.NormalizeItem(ev.Item)
	if item == "" || ev.Count <= 0 {
		d.NoOp(protocol.ReasonInvalidArgs)
		return false
	}
	switch ev.Action {
	case event.InventoryAdd:
		w.addItem(d, p, item, ev.Count)
		return true
	case event.InventoryRemove:
		old := p.ItemCount(item)
		oldTier := p.ArmorTier()
		if !p.RemoveItem(item, ev.Count) {
			d.NoOp(protocol.ReasonInsufficientInventory)
			w.cfg.Logger.Printf("run %s: %s cannot remove %d %s (has %d)", w.cfg.RunID, p.Name, ev.Count, item, old)
			return false
		}
		d.AddPlayerChange(p.Name, "inventory."+item, old, p.ItemCount(item))
		d.AddPlayerChange(p.Name, "armor_tier", oldTier, p.ArmorTier())
		return true
	}
	d.NoOp(protocol.ReasonInvalidArgs)
	return false
}

// Arrival points per dimension. Nether travel scales horizontal coordinates by 8.
var endPlatform = player.Position{X: 100, Y: 49, Z: 0}

func (w *World) onDimension(d *trace.Diff, p *player.State, ev event.Dimension) bool {
	if ev.To == "" {
		d.NoOp(protocol.ReasonInvalidArgs)
		return false
	}
	if p.Dimension == ev.To {
		return false
	}
	from := p.Dimension
	d.AddPlayerChange(p.Name, "dimension", string(from), string(ev.To))
	p.Dimension = ev.To

	pos := p.Pos
	switch {
	case ev.To == catalogs.Nether && from == catalogs.Overworld:
		pos.X, pos.Z = pos.X/8, pos.Z/8
	case ev.To == catalogs.Overworld && from == catalogs.Nether:
		pos.X, pos.Z = pos.X*8, pos.Z*8
	case ev.To == catalogs.TheEnd:
		pos = endPlatform
	case ev.To == catalogs.Overworld && from == catalogs.TheEnd:
		pos = player.Position{Y: player.SpawnY}
	}
	w.setPosition(d, p, pos)

	switch ev.To {
	case catalogs.Nether:
		if !p.EnteredNether {
			d.AddPlayerChange(p.Name, "entered_nether", false, true)
			p.EnteredNether = true
		}
	case catalogs.TheEnd:
		if !p.EnteredEnd {
			d.AddPlayerChange(p.Name, "entered_end", false, true)
			p.EnteredEnd = true
		}
	}
	return true
}

func (w *World) onDeath(d *trace.Diff, p *player.State, ev event.Death) bool {
	if !p.Alive {
		d.NoOp(protocol.ReasonPlayerDead)
		w.setState(d, Ending)
		return false
	}
	cause := ev.Cause
	if cause == "" {
		cause = "unknown"
	}
	w.kill(d, p, cause)
	return true
}

func (w *World) onDragonKill(d *trace.Diff, p *player.State) bool {
	if !w.dragon.Alive {
		return false
	}
	killer := ""
	if p != nil {
		killer = p.Name
	}
	d.AddChange("dragon.alive", true, false)
	d.AddChange("dragon.health", w.dragon.Health, 0.0)
	d.AddChange("dragon.killer", w.dragon.Killer, killer)
	w.dragon = Dragon{Alive: false, Health: 0, Killer: killer}
	d.CausedVictory = true
	w.victory = true
	w.setState(d, Ending)
	w.cfg.Logger.Printf("run %s: dragon killed by %q at t=%.1f", w.cfg.RunID, killer, w.clock)
	return true
}

func (w *World) onMobKill(d *trace.Diff, p *player.State, ev event.MobKill) bool {
	count := ev.Count
	if count <= 0 {
		count = 1
	}
	old := p.MobKills
	p.MobKills += count
	d.AddPlayerChange(p.Name, "mob_kills", old, p.MobKills)

	mob := catalogs.NormalizeItem(ev.Mob)
	left := count
	for i := range w.mobs {
		m := &w.mobs[i]
		if left == 0 {
			break
		}
		if m.Target != p.Name || m.AliveCount == 0 || (mob != "" && m.MobType != mob) {
			continue
		}
		n := min(left, m.AliveCount)
		d.AddChange(fmtIndex("mobs", i, "alive_count"), m.AliveCount, m.AliveCount-n)
		m.AliveCount -= n
		left -= n
	}
	return true
}

func (w *World) onStructure(d *trace.Diff, ev event.Structure) bool {
	name := catalogs.NormalizeStructure(ev.Structure)
	if name == "" {
		d.NoOp(protocol.ReasonInvalidArgs)
		return false
	}
	if !w.structures[name] {
		d.AddChange("structures."+name, false, true)
		w.structures[name] = true
	}
	return true
}

func (w *World) onHealth(d *trace.Diff, p *player.State, ev event.Health) bool {
	w.setHealth(d, p, ev.Health)
	if ev.Food != nil {
		w.setFood(d, p, *ev.Food)
	}
	if p.Health <= 0 {
		w.kill(d, p, "health_update")
	}
	return true
}

// driftTarot applies the event's archetype nudges to its actor.
func (w *World) driftTarot(d *trace.Diff, e event.Event) {
	prof, ok := w.tarot[e.Actor()]
	if !ok {
		return
	}
	before := *prof
	if len(tarot.Apply(prof, e)) == 0 {
		return
	}
	for c := tarot.Card(0); c < tarot.NumCards; c++ {
		d.AddPlayerChange(e.Actor(), "tarot."+c.String(), before.Weight(c), prof.Weight(c))
	}
	d.AddPlayerChange(e.Actor(), "tarot.dominant", before.Dominant().String(), prof.Dominant().String())
}

func (w *World) recordCapabilities(d *trace.Diff, before event.Capabilities) {
	for _, c := range before.Diff(w.caps) {
		d.AddChange(c.Field, c.Old, c.New)
	}
}
