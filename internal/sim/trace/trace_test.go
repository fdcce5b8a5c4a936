package trace

import (
	"encoding/json"
	"math"
	"testing"

	"eris.ai/internal/sim/pressure"
)

func TestAddChangeSkipsNoOps(t *testing.T) {
	d := NewDiff(SourceEvent, "damage", "Alice")
	d.AddPlayerChange("Alice", "health", 20.0, 20.0)
	if d.HasChanges() {
		t.Fatalf("equal values should be skipped")
	}
	d.AddPlayerChange("Alice", "health", 20.0, 12.0)
	d.AddChange("game_state", "IDLE", "ACTIVE")
	if len(d.Changes) != 2 {
		t.Fatalf("changes=%v", d.Changes)
	}
	c, ok := d.Change("Alice", "health")
	if !ok || c.Old != 20.0 || c.New != 12.0 {
		t.Fatalf("change lookup: %+v %v", c, ok)
	}
	if _, ok := d.Change("", "health"); ok {
		t.Fatalf("world-level lookup should not match a player change")
	}
	d.NoOp("player_dead")
	d.NoOp("unknown_tool")
	if d.Reason != "player_dead" {
		t.Fatalf("first reason wins, got %q", d.Reason)
	}
}

func TestTraceAssignsSequenceAndAggregates(t *testing.T) {
	tr := New("e2e", 2)

	dmg := NewDiff(SourceEvent, "damage", "Alice")
	dmg.AddPlayerChange("Alice", "health", 20.0, 12.0)
	dmg.FractureAfter = 20
	dmg.NewPhase = pressure.Normal

	heal := NewDiff(SourceToolCall, "heal_player", "Alice")
	heal.AddPlayerChange("Alice", "health", 12.0, 20.0)
	heal.FractureAfter = 60
	heal.NewPhase = pressure.Rising

	death := NewDiff(SourceEvent, "death", "Bob")
	death.AddPlayerChange("Bob", "alive", true, false)
	death.CausedDeath = true
	death.FractureAfter = 30
	death.NewPhase = pressure.Normal

	for i, d := range []*Diff{dmg, heal, death} {
		got := tr.Add(d)
		if got.Seq != i+1 || d.Seq != i+1 {
			t.Fatalf("diff %d: seq=%d/%d", i, got.Seq, d.Seq)
		}
	}
	if tr.TotalEvents() != 2 || tr.TotalToolCalls() != 1 {
		t.Fatalf("counts: events=%d tools=%d", tr.TotalEvents(), tr.TotalToolCalls())
	}
	if deaths := tr.Deaths(); len(deaths) != 1 || deaths[0] != "Bob" {
		t.Fatalf("deaths=%v", deaths)
	}
	if tr.FinalPhase() != pressure.Normal || tr.MaxPhase() != pressure.Rising || tr.MaxFracture() != 60 {
		t.Fatalf("phase aggregates: final=%v max=%v maxF=%v", tr.FinalPhase(), tr.MaxPhase(), tr.MaxFracture())
	}
	if tr.Victory() {
		t.Fatalf("no victory recorded")
	}

	dmg.AddPlayerChange("Alice", "fear", 0.0, 16.0)
	if got := tr.At(0); len(got.Changes) != 1 {
		t.Fatalf("stored diff must not alias the caller's diff")
	}
}

func TestTraceJSONRoundTripKeepsDigest(t *testing.T) {
	tr := New("roundtrip", 1)
	d := NewDiff(SourceToolCall, "give_item", "Alice")
	d.Args = map[string]any{"item": "diamond", "count": 3}
	d.AddPlayerChange("Alice", "inventory.diamond", 0, 3)
	d.NewPhase = pressure.Critical
	d.FractureAfter = 91.5
	tr.Add(d)
	noop := NewDiff(SourceToolCall, "summon_herobrine", "")
	noop.NoOp("unknown_tool")
	tr.Add(noop)

	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Trace
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Digest() != tr.Digest() {
		t.Fatalf("digest changed across round trip")
	}
	if back.ScenarioName() != "roundtrip" || back.TotalToolCalls() != 2 || back.FinalPhase() != pressure.Critical {
		t.Fatalf("aggregates not rebuilt: %+v", back)
	}
	if last, _ := back.Last(); last.Reason != "unknown_tool" || last.HasChanges() {
		t.Fatalf("no-op diff lost its reason: %+v", last)
	}
}

func TestDigestDetectsDifference(t *testing.T) {
	a, b := New("x", 1), New("x", 1)
	for _, tr := range []*Trace{a, b} {
		d := NewDiff(SourceEvent, "chat", "Alice")
		d.T = 5
		tr.Add(d)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("identical traces must share a digest")
	}
	d := NewDiff(SourceEvent, "chat", "Alice")
	d.T = 10
	b.Add(d)
	if a.Digest() == b.Digest() {
		t.Fatalf("digest should change with content")
	}
}

func TestDigestReportsUnencodableDiff(t *testing.T) {
	tr := New("x", 1)
	d := NewDiff(SourceToolCall, "modify_aura", "Alice")
	d.AddPlayerChange("Alice", "aura", 50.0, math.NaN())
	tr.Add(d)
	if _, err := DigestDiffs(tr.Diffs()); err == nil {
		t.Fatalf("expected an encoding error for NaN")
	}
	if tr.Digest() != "" {
		t.Fatalf("digest of an unencodable trace should be empty")
	}
}
