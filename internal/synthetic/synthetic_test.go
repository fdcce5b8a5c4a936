package synthetic

import (
	"context"
	"testing"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/world"
)

func base(name string) event.Base { return event.Base{Player: name} }

func TestEnvelopeMapping(t *testing.T) {
	food := 7
	cases := []struct {
		e        event.Event
		typ      string
		priority string
	}{
		{event.Advancement{Base: base("A"), Key: "story/mine_stone"}, protocol.EventAdvancement, protocol.PriorityMedium},
		{event.Advancement{Base: base("A"), Key: "story/enter_the_nether"}, protocol.EventAdvancement, protocol.PriorityHigh},
		{event.Damage{Base: base("A"), Source: "zombie", Amount: 2}, protocol.EventPlayerDamaged, protocol.PriorityMedium},
		{event.Damage{Base: base("A"), Source: "creeper", Amount: 9}, protocol.EventPlayerDamaged, protocol.PriorityHigh},
		{event.Inventory{Base: base("A"), Action: event.InventoryAdd, Item: "diamond", Count: 1}, protocol.EventResourceMilestone, protocol.PriorityHigh},
		{event.Inventory{Base: base("A"), Action: event.InventoryAdd, Item: "dirt", Count: 64}, protocol.EventItemCollected, protocol.PriorityLow},
		{event.Inventory{Base: base("A"), Action: event.InventoryRemove, Item: "diamond", Count: 1}, protocol.EventItemLost, protocol.PriorityLow},
		{event.Dimension{Base: base("A"), From: catalogs.Overworld, To: catalogs.Nether}, protocol.EventDimensionChange, protocol.PriorityHigh},
		{event.Chat{Base: base("A"), Message: "hi"}, protocol.EventPlayerChat, protocol.PriorityLow},
		{event.Death{Base: base("A"), Cause: "lava"}, protocol.EventPlayerDeath, protocol.PriorityCritical},
		{event.DragonKill{}, protocol.EventDragonKilled, protocol.PriorityCritical},
		{event.MobKill{Base: base("A"), Mob: "blaze", Count: 2}, protocol.EventMobKilled, protocol.PriorityLow},
		{event.Structure{Base: base("A"), Structure: "fortress"}, protocol.EventStructureFound, protocol.PriorityMedium},
		{event.Health{Base: base("A"), Health: 4, Food: &food}, protocol.EventHealthUpdate, protocol.PriorityHigh},
		{event.Health{Base: base("A"), Health: 18}, protocol.EventHealthUpdate, protocol.PriorityLow},
	}
	if len(cases) < len(event.Kinds) {
		t.Fatalf("every event kind needs a case")
	}
	for i, tc := range cases {
		env := Envelope(tc.e, 1)
		if env.EventType != tc.typ || env.Priority != tc.priority {
			t.Fatalf("case %d (%s): got %s/%s, want %s/%s", i, tc.e.Kind(), env.EventType, env.Priority, tc.typ, tc.priority)
		}
		if env.Player() != tc.e.Actor() {
			t.Fatalf("case %d: player %q", i, env.Player())
		}
	}

	env := Envelope(event.Advancement{Base: base("A"), Key: "story/mine_stone"}, 0)
	if env.Data["advancement"] != "minecraft:story/mine_stone" || env.Data["name"] != "mine_stone" {
		t.Fatalf("advancement data: %v", env.Data)
	}
	env = Envelope(event.Health{Base: base("A"), Health: 4, Food: &food}, 0)
	if env.Data["food"] != 7 {
		t.Fatalf("health data: %v", env.Data)
	}
	if _, ok := Envelope(event.DragonKill{}, 0).Data["player"]; ok {
		t.Fatalf("dragon kill without a killer should not carry a player")
	}
}

func TestProcessorTimestamps(t *testing.T) {
	p := NewProcessor([]event.Event{
		event.Chat{Base: event.Base{Player: "A", Delay: 2}, Message: "a"},
		event.Chat{Base: base("A"), Message: "b"},
		event.Chat{Base: event.Base{Player: "A", Delay: 10}, Message: "c"},
	})
	want := []float64{2, 2 + event.DefaultDelay, 12 + event.DefaultDelay}
	for i, ts := range want {
		if !p.HasMore() || p.Remaining() != len(want)-i {
			t.Fatalf("step %d: HasMore=%v remaining=%d", i, p.HasMore(), p.Remaining())
		}
		st, ok := p.Next()
		if !ok || st.Index != i || st.Envelope.Timestamp != ts {
			t.Fatalf("step %d: ok=%v index=%d ts=%v", i, ok, st.Index, st.Envelope.Timestamp)
		}
	}
	if p.HasMore() {
		t.Fatalf("processor should be drained")
	}
	if _, ok := p.Next(); ok {
		t.Fatalf("Next after drain should report false")
	}
}

func newClient(t *testing.T) (*Client, *world.World) {
	t.Helper()
	w, err := world.New(world.Config{RunID: "client"}, []player.Definition{{Name: "Alice", Role: player.RoleRunner}})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewClient(w, nil), w
}

func TestClientExecute(t *testing.T) {
	c, w := newClient(t)
	ctx := context.Background()

	res, d := c.Execute(ctx, protocol.ToolCall{Name: catalogs.ToolSpawnMob, Args: map[string]any{"player": "Alice", "mob": "zombie", "count": 2}})
	if !res.Success || res.Code != "" || res.Seq != 1 || !d.HasChanges() {
		t.Fatalf("spawn: %+v", res)
	}

	res, _ = c.Execute(ctx, protocol.ToolCall{Name: "summon_meteor"})
	if res.Success || res.Code != protocol.ErrUnknownTool || res.Reason != protocol.ReasonUnknownTool {
		t.Fatalf("unknown tool: %+v", res)
	}

	res, _ = c.Execute(ctx, protocol.ToolCall{Name: catalogs.ToolBroadcast, Args: map[string]any{"message": "the end draws near"}})
	if !res.Success || res.Reason != protocol.ReasonNarrativeOnly {
		t.Fatalf("broadcast: %+v", res)
	}

	if len(c.Calls()) != 3 || len(c.Diffs()) != 3 || w.Trace().TotalToolCalls() != 3 {
		t.Fatalf("calls=%d diffs=%d trace=%d", len(c.Calls()), len(c.Diffs()), w.Trace().TotalToolCalls())
	}
	if c.Snapshot().Players[0].Fear == 0 {
		t.Fatalf("spawned mobs should raise fear")
	}
}

func TestClientRespectsCancellation(t *testing.T) {
	c, w := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := c.ExecuteAll(ctx, []protocol.ToolCall{
		{Name: catalogs.ToolHealPlayer, Args: map[string]any{"player": "Alice"}},
		{Name: catalogs.ToolBroadcast},
	})
	if len(results) != 1 || results[0].Code != protocol.ErrTimeout {
		t.Fatalf("results: %+v", results)
	}
	if w.Trace().Len() != 0 || len(c.Calls()) != 0 {
		t.Fatalf("cancelled calls must not reach the world")
	}
}
