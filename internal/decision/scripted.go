package decision

import (
	"context"

	"eris.ai/internal/protocol"
)

// Scripted replays a fixed set of tool calls keyed by event index.
type Scripted struct {
	calls map[int][]protocol.ToolCall
}

// NewScripted copies calls; the map is keyed by the index of the event the
// calls follow.
func NewScripted(calls map[int][]protocol.ToolCall) *Scripted {
	s := &Scripted{calls: make(map[int][]protocol.ToolCall, len(calls))}
	for i, cs := range calls {
		s.calls[i] = append([]protocol.ToolCall(nil), cs...)
	}
	return s
}

func (s *Scripted) Decide(_ context.Context, req Request) (protocol.Decision, error) {
	return Intervention(s.calls[req.Step]...), nil
}

// Steps returns how many event indexes carry scripted calls.
func (s *Scripted) Steps() int { return len(s.calls) }
