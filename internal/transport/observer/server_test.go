package observer

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/scenario"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
	"eris.ai/internal/sim/trace"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (protocol.BaseMessage, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base, b
}

func TestStreamsRunToViewer(t *testing.T) {
	obs := NewServer(nil, false)
	srv := httptest.NewServer(obs.WSHandler())
	defer srv.Close()
	conn := dial(t, srv, "")

	if m, _ := read(t, conn); m.Type != protocol.TypeHello || m.ProtocolVersion != protocol.Version {
		t.Fatalf("hello: %+v", m)
	}

	s, err := scenario.New(scenario.Metadata{Name: "stream"},
		[]player.Definition{{Name: "Alice", Role: player.RoleRunner}},
		[]event.Event{
			event.Chat{Base: event.Base{Player: "Alice"}, Message: "gl"},
			event.DragonKill{Base: event.Base{Player: "Alice"}},
		})
	if err != nil {
		t.Fatalf("scenario.New: %v", err)
	}
	res := runner.New(runner.Config{}, nil, obs).WithRunIDs(func() string { return "run-s" }).Run(context.Background(), s)

	var diffs []trace.Diff
	for {
		m, b := read(t, conn)
		switch m.Type {
		case protocol.TypeRunStart:
			var start protocol.RunStartMsg
			_ = json.Unmarshal(b, &start)
			if start.RunID != "run-s" || start.Scenario != "stream" || len(start.Party) != 1 {
				t.Fatalf("run start: %+v", start)
			}
		case protocol.TypeDiff:
			var dm protocol.DiffMsg
			_ = json.Unmarshal(b, &dm)
			var d trace.Diff
			if err := json.Unmarshal(dm.Diff, &d); err != nil {
				t.Fatalf("diff: %v", err)
			}
			if d.Seq != dm.Seq {
				t.Fatalf("seq mismatch: %d vs %d", d.Seq, dm.Seq)
			}
			diffs = append(diffs, d)
		case protocol.TypeRunEnd:
			var end protocol.RunEndMsg
			_ = json.Unmarshal(b, &end)
			if !end.Success || !end.Victory || end.Digest != res.Trace.Digest() {
				t.Fatalf("run end: %+v", end)
			}
			if len(diffs) != res.Trace.Len() {
				t.Fatalf("diffs: %d vs %d", len(diffs), res.Trace.Len())
			}
			if got, err := trace.DigestDiffs(diffs); err != nil || got != end.Digest {
				t.Fatalf("streamed diffs do not reproduce the digest")
			}
			return
		default:
			t.Fatalf("unexpected message %q", m.Type)
		}
	}
}

func TestSubscribeFiltersByRun(t *testing.T) {
	obs := NewServer(nil, false)
	srv := httptest.NewServer(obs.WSHandler())
	defer srv.Close()
	conn := dial(t, srv, "?run_id=wanted")

	if m, b := read(t, conn); m.Type != protocol.TypeHello || !strings.Contains(string(b), `"run_id":"wanted"`) {
		t.Fatalf("hello: %s", b)
	}

	obs.RunStarted(runner.RunInfo{RunID: "other", Scenario: "x"})
	obs.RunStarted(runner.RunInfo{RunID: "wanted", Scenario: "y"})
	m, b := read(t, conn)
	if m.Type != protocol.TypeRunStart || !strings.Contains(string(b), `"run_id":"wanted"`) {
		t.Fatalf("filtered stream: %s", b)
	}

	sub, _ := json.Marshal(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m, b := read(t, conn); m.Type != protocol.TypeHello || strings.Contains(string(b), "run_id") {
		t.Fatalf("ack: %s", b)
	}
	obs.RunFinished(&runner.Result{RunID: "other"})
	if m, _ := read(t, conn); m.Type != protocol.TypeRunEnd {
		t.Fatalf("unfiltered stream: %+v", m)
	}
}

func TestRemoteViewersRejected(t *testing.T) {
	if isLoopbackRemote("203.0.113.7:5555") || !isLoopbackRemote("127.0.0.1:1") || !isLoopbackRemote("[::1]:80") {
		t.Fatalf("loopback detection")
	}
}

func TestBroadcastWithoutViewersIsSilent(t *testing.T) {
	obs := NewServer(nil, true)
	obs.DiffRecorded("r", trace.Diff{Seq: 1})
	obs.RunFinished(&runner.Result{RunID: "r"})
	if obs.Sessions() != 0 || obs.Dropped() != 0 {
		t.Fatalf("sessions=%d dropped=%d", obs.Sessions(), obs.Dropped())
	}
}
