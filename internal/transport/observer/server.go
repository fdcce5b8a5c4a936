// Package observer streams recorded diffs to WebSocket viewers while runs
// are in progress.
package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/sim/trace"
)

type Server struct {
	log         *log.Logger
	allowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session
}

var _ runner.Observer = (*Server)(nil)

type session struct {
	id  string
	out chan []byte

	mu    sync.Mutex
	runID string
}

func (s *session) filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *session) setFilter(runID string) {
	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
}

// NewServer returns a stream server. Unless allowRemote is set only loopback
// clients may connect.
func NewServer(logger *log.Logger, allowRemote bool) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		log:         logger,
		allowRemote: allowRemote,
		sessions:    map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions is the number of connected viewers.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Dropped counts messages discarded because a viewer fell behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) RunStarted(info runner.RunInfo) {
	party := info.Party
	if party == nil {
		party = []string{}
	}
	s.broadcast(info.RunID, protocol.RunStartMsg{
		Type:            protocol.TypeRunStart,
		ProtocolVersion: protocol.Version,
		RunID:           info.RunID,
		Scenario:        info.Scenario,
		Party:           party,
		Seed:            info.Seed,
	})
}

func (s *Server) DiffRecorded(runID string, d trace.Diff) {
	if s.Sessions() == 0 {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		s.log.Printf("observer: encode diff %s/%d: %v", runID, d.Seq, err)
		return
	}
	s.broadcast(runID, protocol.DiffMsg{
		Type:            protocol.TypeDiff,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Seq:             d.Seq,
		Diff:            raw,
	})
}

func (s *Server) Decided(string, int, protocol.Decision) {}

func (s *Server) RunFinished(res *runner.Result) {
	msg := protocol.RunEndMsg{
		Type:            protocol.TypeRunEnd,
		ProtocolVersion: protocol.Version,
		RunID:           res.RunID,
		Success:         res.Success,
		Error:           res.Error,
		Victory:         res.Victory,
		Deaths:          len(res.Deaths),
		FinalPhase:      res.FinalPhase.String(),
		FinalFracture:   res.FinalFracture,
	}
	if res.Trace != nil {
		msg.Digest = res.Trace.Digest()
	}
	s.broadcast(res.RunID, msg)
}

func (s *Server) broadcast(runID string, msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("observer: encode: %v", err)
		return
	}
	for _, sess := range s.sessions {
		if f := sess.filter(); f != "" && f != runID {
			continue
		}
		select {
		case sess.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) hello(runID string) []byte {
	b, _ := json.Marshal(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, RunID: runID})
	return b
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := &session{
			id:    fmt.Sprintf("V%d", s.nextID.Add(1)),
			out:   make(chan []byte, 4096),
			runID: strings.TrimSpace(r.URL.Query().Get("run_id")),
		}
		sess.out <- s.hello(sess.runID)
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		s.log.Printf("observer: viewer %s connected from %s", sess.id, r.RemoteAddr)

		done := make(chan struct{})
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			close(done)
			s.log.Printf("observer: viewer %s left", sess.id)
		}()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates change the run filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub protocol.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
				continue
			}
			sess.setFilter(strings.TrimSpace(sub.RunID))
			select {
			case sess.out <- s.hello(sess.filter()):
			default:
				s.dropped.Add(1)
			}
		}

		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
