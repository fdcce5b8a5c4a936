package world

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/tarot"
	"eris.ai/internal/sim/trace"
)

func newWorld(t *testing.T, names ...string) *World {
	t.Helper()
	party := make([]player.Definition, 0, len(names))
	for _, n := range names {
		party = append(party, player.Definition{Name: n, Role: player.RoleRunner})
	}
	w, err := New(Config{RunID: "test", Scenario: t.Name()}, party)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func at(name string) event.Base { return event.Base{Player: name} }

func tool(name string, kv ...any) protocol.ToolCall {
	a := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		a[kv[i].(string)] = kv[i+1]
	}
	return protocol.ToolCall{Name: name, Args: a}
}

func mustChange(t *testing.T, d trace.Diff, player, field string, old, new any) {
	t.Helper()
	c, ok := d.Change(player, field)
	if !ok {
		t.Fatalf("diff %s: no change for %s/%s in %+v", d.SourceName, player, field, d.Changes)
	}
	if c.Old != old || c.New != new {
		t.Fatalf("diff %s: %s/%s = %v -> %v, want %v -> %v", d.SourceName, player, field, c.Old, c.New, old, new)
	}
}

func TestNewRejectsBadParty(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error for empty party")
	}
	dup := []player.Definition{{Name: "Alice"}, {Name: "Alice"}}
	if _, err := New(Config{}, dup); err == nil {
		t.Fatalf("expected error for duplicate names")
	}
}

func TestVictoryScenario(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")

	d := w.ApplyEvent(event.Damage{Base: at("Alice"), Source: "blaze", Amount: 8})
	mustChange(t, d, "Alice", "health", 20.0, 12.0)
	mustChange(t, d, "Alice", "fear", 0.0, 16.0)
	mustChange(t, d, "", "game_state", "IDLE", "ACTIVE")
	if d.T != event.DefaultDelay || d.Seq != 1 {
		t.Fatalf("t=%v seq=%d", d.T, d.Seq)
	}

	d = w.ApplyToolCall(tool("heal_player", "player", "Alice", "full", true))
	mustChange(t, d, "Alice", "health", 12.0, 20.0)
	c, _ := d.Change("Alice", "fear")
	if c.New.(float64) >= 16 {
		t.Fatalf("heal should reduce fear, got %v", c.New)
	}
	if d.T != event.DefaultDelay {
		t.Fatalf("tool calls do not advance the clock, t=%v", d.T)
	}

	d = w.ApplyEvent(event.DragonKill{Base: at("Alice")})
	mustChange(t, d, "", "dragon.alive", true, false)
	mustChange(t, d, "", "dragon.health", DragonMaxHealth, 0.0)
	mustChange(t, d, "", "game_state", "ACTIVE", "ENDING")
	if !d.CausedVictory {
		t.Fatalf("dragon kill should flag victory")
	}

	tr := w.Trace()
	if !tr.Victory() || len(tr.Deaths()) != 0 || tr.TotalEvents() != 2 || tr.TotalToolCalls() != 1 {
		t.Fatalf("trace: victory=%v deaths=%v events=%d tools=%d", tr.Victory(), tr.Deaths(), tr.TotalEvents(), tr.TotalToolCalls())
	}
	if tr.MaxPhase() > pressure.Rising {
		t.Fatalf("phase escalated to %v", tr.MaxPhase())
	}
	if w.State() != Ending || !w.Done() {
		t.Fatalf("state=%v", w.State())
	}
	w.Finish()
	if w.State() != Ended {
		t.Fatalf("finish should end the run")
	}
}

func TestLethalDamageScenario(t *testing.T) {
	w := newWorld(t, "Solo")
	d := w.ApplyEvent(event.Damage{Base: at("Solo"), Source: "fall", Amount: 25})
	p, _ := w.Player("Solo")
	if p.Health != 0 || p.Alive {
		t.Fatalf("player should be dead at 0 health: %+v", p)
	}
	if !d.CausedDeath || w.State() != Ending {
		t.Fatalf("caused_death=%v state=%v", d.CausedDeath, w.State())
	}
	if deaths := w.Trace().Deaths(); len(deaths) != 1 || deaths[0] != "Solo" {
		t.Fatalf("deaths=%v", deaths)
	}
}

func TestDeadPlayersAreInert(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Death{Base: at("Alice"), Cause: "lava"})

	d := w.ApplyEvent(event.Damage{Base: at("Alice"), Source: "zombie", Amount: 3})
	if d.HasChanges() || d.Reason != protocol.ReasonPlayerDead {
		t.Fatalf("damage on dead player: changes=%v reason=%q", d.Changes, d.Reason)
	}
	d = w.ApplyEvent(event.Death{Base: at("Alice")})
	if d.HasChanges() || d.CausedDeath {
		t.Fatalf("repeated death must be idempotent: %+v", d)
	}
	d = w.ApplyToolCall(tool("heal_player", "player", "Alice"))
	if d.HasChanges() || d.Reason != protocol.ReasonPlayerDead {
		t.Fatalf("heal on dead player: %+v", d)
	}
	d = w.ApplyEvent(event.Damage{Base: at("Bob"), Source: "zombie", Amount: 3})
	if !d.HasChanges() {
		t.Fatalf("damage on a living player must change state")
	}
}

func TestNoOpReasons(t *testing.T) {
	w := newWorld(t, "Alice")
	w.ApplyEvent(event.Chat{Base: at("Alice"), Message: "hi"})

	cases := []struct {
		call   protocol.ToolCall
		reason string
	}{
		{tool("summon_herobrine", "player", "Alice"), protocol.ReasonUnknownTool},
		{tool("heal_player", "player", "Zed"), protocol.ReasonUnknownPlayer},
		{tool("spawn_mob", "player", "Alice", "count", -1), protocol.ReasonInvalidArgs},
		{tool("damage_player", "player", "Alice"), protocol.ReasonInvalidArgs},
		{tool("broadcast", "message", "the end is near"), protocol.ReasonNarrativeOnly},
		{tool("change_weather", "weather", "clear"), protocol.ReasonNoEffect},
	}
	for _, c := range cases {
		d := w.ApplyToolCall(c.call)
		if d.HasChanges() || d.Reason != c.reason {
			t.Fatalf("%s: changes=%v reason=%q want %q", c.call.Name, d.Changes, d.Reason, c.reason)
		}
	}

	d := w.ApplyEvent(event.Inventory{Base: at("Alice"), Action: event.InventoryRemove, Item: "diamond", Count: 2})
	if d.HasChanges() || d.Reason != protocol.ReasonInsufficientInventory {
		t.Fatalf("unaffordable remove: %+v", d)
	}
	if w.Trace().TotalToolCalls() != len(cases) {
		t.Fatalf("every absorbed tool call is still recorded")
	}
}

func TestDamagePlayerToolIsNonLethal(t *testing.T) {
	w := newWorld(t, "Alice")
	d := w.ApplyToolCall(tool("damage_player", "player", "Alice", "amount", 50.0))
	mustChange(t, d, "Alice", "health", 20.0, 1.0)
	p, _ := w.Player("Alice")
	if !p.Alive || w.State() != Active {
		t.Fatalf("damage_player must never kill: %+v", p)
	}
	d = w.ApplyToolCall(tool("damage_player", "player", "Alice", "amount", 3))
	if d.HasChanges() {
		t.Fatalf("no damage possible at 1 health: %+v", d.Changes)
	}
}

func TestRespawnOverride(t *testing.T) {
	w := newWorld(t, "Solo")
	w.ApplyEvent(event.Dimension{Base: at("Solo"), From: catalogs.Overworld, To: catalogs.Nether})
	w.ApplyEvent(event.Death{Base: at("Solo"), Cause: "lava"})
	if w.State() != Ending {
		t.Fatalf("state=%v", w.State())
	}
	d := w.ApplyToolCall(tool("respawn_override", "player", "Solo"))
	mustChange(t, d, "Solo", "alive", false, true)
	mustChange(t, d, "Solo", "dimension", "nether", "overworld")
	mustChange(t, d, "", "game_state", "ENDING", "ACTIVE")
	p, _ := w.Player("Solo")
	if p.Health != player.MaxHealth || !p.Alive {
		t.Fatalf("respawned player: %+v", p)
	}

	w.ApplyEvent(event.Death{Base: at("Solo")})
	d = w.ApplyToolCall(tool("respawn_override", "player", "Solo"))
	if d.Reason != protocol.ReasonRespawnCap || d.HasChanges() {
		t.Fatalf("second respawn should hit the cap: %+v", d)
	}
}

func TestRespawnKeepsEndingWhileOthersDead(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Death{Base: at("Alice")})
	w.ApplyEvent(event.Death{Base: at("Bob")})
	w.ApplyToolCall(tool("respawn_override", "player", "Alice"))
	if w.State() != Ending {
		t.Fatalf("Bob is still dead, run must stay ENDING, got %v", w.State())
	}
}

func TestApocalypseLatchSurvivesRecovery(t *testing.T) {
	w := newWorld(t, "Alice")
	w.ApplyToolCall(tool("spawn_tnt", "player", "Alice", "count", 10))
	d := w.ApplyToolCall(tool("spawn_tnt", "player", "Alice", "count", 10))
	if !d.ApocalypseTriggered || !d.HardApocalypse || w.Phase() != pressure.Apocalypse {
		t.Fatalf("fracture %.1f should trigger both apocalypse signals", d.FractureAfter)
	}
	w.Decay(0)
	d = w.ApplyToolCall(tool("protect_player", "player", "Alice"))
	if d.FractureBefore != 160 {
		t.Fatalf("fracture_before should reflect decay, got %v", d.FractureBefore)
	}
	if w.Phase() != pressure.Breaking || !d.PhaseChanged {
		t.Fatalf("phase should fall back to breaking, got %v (fracture %v)", w.Phase(), w.Fracture())
	}
	if !w.ApocalypseTriggered() || !w.HardApocalypse() {
		t.Fatalf("latches must hold after recovery")
	}
	if d.ApocalypseTriggered {
		t.Fatalf("latch flag is only set on the diff that fired it")
	}
}

func TestFractureNonDecreasingUnderDamage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"Alice", "Bob", "Charlie"}
	w := newWorld(t, names...)
	last := w.Fracture()
	for i := 0; i < 200; i++ {
		d := w.ApplyEvent(event.Damage{
			Base:   at(names[rng.Intn(len(names))]),
			Source: "zombie",
			Amount: float64(1 + rng.Intn(6)),
		})
		if d.FractureAfter < d.FractureBefore || d.FractureAfter < last {
			t.Fatalf("step %d: fracture fell %v -> %v", i, last, d.FractureAfter)
		}
		if d.FractureAfter != w.Fracture() {
			t.Fatalf("step %d: recorded fracture %v != derived %v", i, d.FractureAfter, w.Fracture())
		}
		last = d.FractureAfter
	}
}

func TestHealthStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	names := []string{"Alice", "Bob"}
	w := newWorld(t, names...)
	for i := 0; i < 500; i++ {
		name := names[rng.Intn(len(names))]
		switch rng.Intn(5) {
		case 0:
			w.ApplyEvent(event.Damage{Base: at(name), Source: "skeleton", Amount: float64(1 + rng.Intn(20))})
		case 1:
			w.ApplyToolCall(tool("heal_player", "player", name, "full", rng.Intn(2) == 0))
		case 2:
			w.ApplyToolCall(tool("damage_player", "player", name, "amount", float64(rng.Intn(30))))
		case 3:
			w.ApplyEvent(event.Health{Base: at(name), Health: float64(rng.Intn(30) - 5)})
		case 4:
			w.ApplyToolCall(tool("respawn_override", "player", name))
		}
		for _, n := range names {
			p, _ := w.Player(n)
			if p.Health < 0 || p.Health > p.MaxHealth {
				t.Fatalf("step %d: %s health %v out of bounds", i, n, p.Health)
			}
		}
	}
}

func TestEffectsExpireWithClock(t *testing.T) {
	w := newWorld(t, "Alice")
	d := w.ApplyToolCall(tool("apply_effect", "player", "Alice", "effect", "blindness", "duration", 3.0))
	mustChange(t, d, "Alice", "fear", 0.0, 3.0)
	if len(w.ActiveEffects()) != 1 {
		t.Fatalf("effect not recorded")
	}
	d = w.ApplyEvent(event.Chat{Base: at("Alice"), Message: "why is it dark"})
	mustChange(t, d, "Alice", "effects.blindness", 0, nil)
	if len(w.ActiveEffects()) != 0 {
		t.Fatalf("effect should have expired")
	}
}

func TestCapabilitiesAndMobs(t *testing.T) {
	w := newWorld(t, "Alice")
	w.ApplyToolCall(tool("spawn_mob", "player", "Alice", "mob_type", "blaze", "count", 3))
	d := w.ApplyEvent(event.MobKill{Base: at("Alice"), Mob: "blaze", Count: 2})
	mustChange(t, d, "Alice", "mob_kills", 0, 2)
	mustChange(t, d, "", "mobs[0].alive_count", 3, 1)

	d = w.ApplyToolCall(tool("give_item", "player", "Alice", "item", "flint_and_steel"))
	mustChange(t, d, "", "capabilities.has_flint_and_steel", false, true)
	w.ApplyEvent(event.Inventory{Base: at("Alice"), Action: event.InventoryAdd, Item: "obsidian", Count: 10})
	if !w.Capabilities().CanEnterNether() {
		t.Fatalf("flint and 10 obsidian should open the nether")
	}
	d = w.ApplyEvent(event.Dimension{Base: at("Alice"), From: catalogs.Overworld, To: catalogs.Nether})
	mustChange(t, d, "Alice", "entered_nether", false, true)
	mustChange(t, d, "Alice", "tarot.FOOL", 0.0, 0.15)
}

func TestReplayIsDeterministic(t *testing.T) {
	run := func() string {
		w := newWorld(t, "Alice", "Bob", "Charlie")
		w.ApplyEvent(event.Advancement{Base: at("Alice"), Key: "mine_stone"})
		w.ApplyToolCall(tool("teleport_player", "player", "Bob", "mode", "random"))
		w.ApplyToolCall(tool("teleport_player", "player", "Charlie", "mode", "swap"))
		w.ApplyToolCall(tool("teleport_player", "player", "Alice", "mode", "isolate"))
		w.ApplyEvent(event.Damage{Base: at("Bob"), Source: "creeper", Amount: 9})
		w.Decay(0.5)
		w.ApplyEvent(event.Structure{Base: at("Charlie"), Structure: "village"})
		return w.Trace().Digest()
	}
	if a, b := run(), run(); a != b {
		t.Fatalf("digests differ: %s vs %s", a, b)
	}
}

func TestSnapshot(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Inventory{Base: at("Bob"), Action: event.InventoryAdd, Item: "diamond", Count: 4})
	s := w.Snapshot()
	if s.GameState != "ACTIVE" || s.RunDuration != event.DefaultDelay || !s.DragonAlive || s.DragonHealth != DragonMaxHealth {
		t.Fatalf("snapshot header: %+v", s)
	}
	if len(s.Players) != 2 || s.Players[0].Username != "Alice" {
		t.Fatalf("players must follow party order: %+v", s.Players)
	}
	bob, ok := s.Player("Bob")
	if !ok || bob.DiamondCount != 4 || bob.Dimension != "overworld" {
		t.Fatalf("bob snapshot: %+v", bob)
	}
}

func TestTarotSeededFromDefinition(t *testing.T) {
	w, err := New(Config{RunID: "test", Scenario: t.Name()}, []player.Definition{
		{Name: "Alice", Role: player.RoleRunner, Tarot: map[tarot.Card]float64{tarot.Hermit: 0.5, tarot.Moon: 2}},
		{Name: "Bob", Role: player.RoleFighter},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prof, _ := w.Tarot("Alice")
	if prof.Weight(tarot.Hermit) != 0.5 || prof.Weight(tarot.Moon) != tarot.MaxWeight || prof.Weight(tarot.Fool) != 0 {
		t.Fatalf("seeded weights: %v", prof.Weights)
	}
	if prof.Dominant() != tarot.Moon {
		t.Fatalf("dominant: %s", prof.Dominant())
	}
	if s, _ := w.Snapshot().Player("Alice"); s.TarotCard != "MOON" {
		t.Fatalf("snapshot card: %s", s.TarotCard)
	}
	if bob, _ := w.Tarot("Bob"); bob.Weights != (tarot.Profile{}).Weights {
		t.Fatalf("unseeded profile: %v", bob.Weights)
	}
}

func TestNonFiniteToolArgsAreRejected(t *testing.T) {
	cases := []protocol.ToolCall{
		tool("damage_player", "player", "Alice", "amount", "NaN"),
		tool("damage_player", "player", "Alice", "amount", "Inf"),
		tool("damage_player", "player", "Alice", "amount", math.NaN()),
		tool("modify_aura", "player", "Alice", "delta", "NaN"),
		tool("modify_aura", "player", "Alice", "delta", math.Inf(-1)),
		tool("spawn_mob", "player", "Alice", "mob_type", "zombie", "count", "Inf"),
		tool("spawn_mob", "player", "Alice", "mob_type", "zombie", "count", json.Number("NaN")),
		tool("apply_effect", "player", "Alice", "effect", "poison", "duration", "+Inf"),
		tool("apply_effect", "player", "Alice", "effect", "poison", "duration", "NaN"),
	}
	for _, call := range cases {
		w := newWorld(t, "Alice")
		w.ApplyEvent(event.Chat{Base: at("Alice"), Message: "gg"})
		d := w.ApplyToolCall(call)
		if d.HasChanges() || d.Reason != protocol.ReasonInvalidArgs {
			t.Fatalf("%s %v: changes=%v reason=%q", call.Name, call.Args, d.Changes, d.Reason)
		}
		p, _ := w.Player("Alice")
		if p.Health != player.MaxHealth || p.Aura != player.DefaultAura || p.Fear != 0 {
			t.Fatalf("%s %v: player state changed: health=%v aura=%v fear=%v", call.Name, call.Args, p.Health, p.Aura, p.Fear)
		}
		if f := w.Fracture(); f != 0 || w.Phase() != pressure.Normal {
			t.Fatalf("%s %v: fracture=%v phase=%s", call.Name, call.Args, f, w.Phase())
		}
		if _, err := json.Marshal(w.Trace()); err != nil {
			t.Fatalf("%s %v: trace does not encode: %v", call.Name, call.Args, err)
		}
		if _, err := trace.DigestDiffs(w.Trace().Diffs()); err != nil {
			t.Fatalf("%s %v: digest: %v", call.Name, call.Args, err)
		}
	}
}
