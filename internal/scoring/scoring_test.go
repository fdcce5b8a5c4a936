package scoring

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/trace"
	"eris.ai/internal/sim/world"
)

func newWorld(t *testing.T, names ...string) *world.World {
	t.Helper()
	party := make([]player.Definition, 0, len(names))
	for _, n := range names {
		party = append(party, player.Definition{Name: n, Role: player.RoleRunner})
	}
	w, err := world.New(world.Config{RunID: "score", Scenario: t.Name()}, party)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func on(name string, delay float64) event.Base { return event.Base{Player: name, Delay: delay} }

func call(name, target string, kv ...any) protocol.ToolCall {
	args := map[string]any{"player": target}
	for i := 0; i+1 < len(kv); i += 2 {
		args[kv[i].(string)] = kv[i+1]
	}
	return protocol.ToolCall{Name: name, Args: args}
}

func TestPerfectVictory(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Damage{Base: on("Alice", 0), Source: "blaze", Amount: 8})
	w.ApplyToolCall(call("heal_player", "Alice", "full", true))
	w.ApplyEvent(event.DragonKill{Base: on("Alice", 0)})

	s := ScoreRun(w.Trace(), 3*time.Second, "run-1")
	if s.Outcome != PerfectVictory || !s.Victory || len(s.Deaths) != 0 {
		t.Fatalf("outcome=%s victory=%v deaths=%v", s.Outcome, s.Victory, s.Deaths)
	}
	if s.TotalEvents != 2 || s.TotalToolCalls != 1 || s.Survivors != 2 {
		t.Fatalf("counts: %+v", s)
	}
	if s.Rescue.Rescues != 1 || s.Rescue.Rate != 1 || s.Rescue.Latencies[0] != 0 {
		t.Fatalf("rescue: %+v", s.Rescue)
	}
	if s.Tools.Helpful != 1 || s.Tools.Efficiency != 1 || s.Tools.ByTool["heal_player"] != 1 {
		t.Fatalf("tools: %+v", s.Tools)
	}
	if s.Breakdown.Victory != WeightVictory || s.Breakdown.Survival != WeightSurvival || s.Breakdown.Rescue != WeightRescue {
		t.Fatalf("breakdown: %+v", s.Breakdown)
	}
	if s.Overall <= 90 || s.Overall > 100 {
		t.Fatalf("overall: %v", s.Overall)
	}
	if s.Duration() != 3*time.Second || s.RunID != "run-1" || s.Scenario != t.Name() {
		t.Fatalf("identity: %+v", s)
	}
}

func TestTotalFailure(t *testing.T) {
	w := newWorld(t, "Solo")
	w.ApplyEvent(event.Damage{Base: on("Solo", 0), Source: "fall", Amount: 25})

	s := ScoreRun(w.Trace(), 0, "run-2")
	if s.Outcome != TotalFailure || s.Survivors != 0 {
		t.Fatalf("outcome=%s survivors=%d", s.Outcome, s.Survivors)
	}
	if s.Rescue.Failed != 1 || s.Rescue.Rate != 0 {
		t.Fatalf("rescue: %+v", s.Rescue)
	}
	if s.Breakdown.Victory != 0 || s.Breakdown.Survival != 0 || s.Breakdown.Efficiency != WeightEfficiency*0.5 {
		t.Fatalf("breakdown: %+v", s.Breakdown)
	}
}

func TestSurvivalLossAndIncomplete(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Death{Base: on("Bob", 0), Cause: "lava"})
	s := ScoreRun(w.Trace(), 0, "")
	if s.Outcome != SurvivalLoss || s.Survivors != 1 || s.Breakdown.Survival != WeightSurvival/2 {
		t.Fatalf("outcome=%s survivors=%d breakdown=%+v", s.Outcome, s.Survivors, s.Breakdown)
	}

	w = newWorld(t, "Alice")
	w.ApplyEvent(event.Chat{Base: on("Alice", 0), Message: "hello"})
	s = ScoreRun(w.Trace(), 0, "")
	if s.Outcome != Incomplete || s.Tools.Efficiency != 0.5 || s.Rescue.Rate != 1 || s.Rescue.Opportunities != 0 {
		t.Fatalf("incomplete: %+v", s)
	}
}

func TestRespawnedPlayerSurvives(t *testing.T) {
	w := newWorld(t, "Solo")
	w.ApplyEvent(event.Death{Base: on("Solo", 0), Cause: "creeper"})
	w.ApplyToolCall(call("respawn_override", "Solo"))
	s := ScoreRun(w.Trace(), 0, "")
	if s.Survivors != 1 || s.Outcome != SurvivalLoss {
		t.Fatalf("survivors=%d outcome=%s", s.Survivors, s.Outcome)
	}
	if s.Tools.Helpful != 1 {
		t.Fatalf("tools: %+v", s.Tools)
	}
}

func TestFractureSpikesAndCriticalTime(t *testing.T) {
	w := newWorld(t, "Alice")
	w.ApplyToolCall(call("spawn_tnt", "Alice", "count", 10))
	w.ApplyEvent(event.Chat{Base: on("Alice", 5), Message: "what"})
	w.ApplyEvent(event.Chat{Base: on("Alice", 10), Message: "was that"})

	s := ScoreRun(w.Trace(), 0, "")
	f := s.Fracture
	if f.Spikes != 1 || f.PhaseChanges != 1 {
		t.Fatalf("spikes=%d changes=%d", f.Spikes, f.PhaseChanges)
	}
	if f.MaxPhase < pressure.Critical || f.TimeInCritical != 15 {
		t.Fatalf("max phase=%s critical time=%v", f.MaxPhase, f.TimeInCritical)
	}
	if s.Tools.Harmful != 1 || s.Tools.Efficiency != 0 {
		t.Fatalf("tools: %+v", s.Tools)
	}
	if s.Breakdown.Containment >= WeightContainment {
		t.Fatalf("containment should be penalised: %+v", s.Breakdown)
	}
}

func TestRescueWindow(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Damage{Base: on("Alice", 0), Source: "zombie", Amount: 8})
	w.ApplyEvent(event.Chat{Base: on("Alice", 40), Message: "ow"})
	w.ApplyToolCall(call("heal_player", "Alice"))

	w.ApplyEvent(event.Damage{Base: on("Bob", 0), Source: "skeleton", Amount: 16})
	w.ApplyEvent(event.Chat{Base: on("Bob", 10), Message: "help"})
	w.ApplyToolCall(call("heal_player", "Bob"))

	r := ScoreRun(w.Trace(), 0, "").Rescue
	if r.Rescues != 1 || r.Failed != 0 || r.Opportunities != 1 {
		t.Fatalf("rescue: %+v", r)
	}
	if r.AvgLatency != 10 {
		t.Fatalf("latency: %+v", r)
	}
}

func TestScoreJSONRoundTrip(t *testing.T) {
	w := newWorld(t, "Alice", "Bob")
	w.ApplyEvent(event.Damage{Base: on("Alice", 0), Source: "blaze", Amount: 8})
	w.ApplyToolCall(call("heal_player", "Alice", "full", true))
	w.ApplyToolCall(call("spawn_mob", "Bob", "count", 3))
	w.ApplyEvent(event.Death{Base: on("Bob", 0), Cause: "zombie"})

	s := ScoreRun(w.Trace(), 1500*time.Millisecond, "run-3")
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Score
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(s, back) {
		t.Fatalf("round trip differs:\n%+v\n%+v", s, back)
	}

	// A stored trace re-scores to the same result.
	tb, err := json.Marshal(w.Trace())
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	var tr trace.Trace
	if err := json.Unmarshal(tb, &tr); err != nil {
		t.Fatalf("unmarshal trace: %v", err)
	}
	if again := ScoreRun(&tr, 1500*time.Millisecond, "run-3"); !reflect.DeepEqual(s, again) {
		t.Fatalf("re-score differs:\n%+v\n%+v", s, again)
	}
}

func TestLeaderboard(t *testing.T) {
	in := []Score{{RunID: "b", Overall: 50}, {RunID: "a", Overall: 50}, {RunID: "c", Overall: 80}}
	out := Leaderboard(in)
	if out[0].RunID != "c" || out[1].RunID != "a" || out[2].RunID != "b" {
		t.Fatalf("order: %s %s %s", out[0].RunID, out[1].RunID, out[2].RunID)
	}
	if in[0].RunID != "b" {
		t.Fatalf("input was reordered")
	}
}
