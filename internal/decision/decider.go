// Package decision defines the boundary to the narrative decision layer and
// ships the offline adapters the harness runs against.
package decision

import (
	"context"
	"errors"

	"eris.ai/internal/protocol"
)

// ErrTimeout marks a decision that did not arrive in time. The runner treats
// it as "no intervention" rather than a failed run.
var ErrTimeout = errors.New("decision timeout")

// Memory is one remembered step of short-term context.
type Memory struct {
	Envelope protocol.EventEnvelope `json:"event"`
	Decision protocol.Decision      `json:"decision"`
}

// Request is everything the decision layer sees for one event.
type Request struct {
	RunID    string                 `json:"run_id"`
	Scenario string                 `json:"scenario"`
	Step     int                    `json:"step"`
	Envelope protocol.EventEnvelope `json:"event"`
	Snapshot protocol.WorldSnapshot `json:"snapshot"`
	Memory   []Memory               `json:"memory,omitempty"`
}

// Decider answers one request. Implementations hold per-run state and must
// not be shared between concurrent runs.
type Decider interface {
	Decide(ctx context.Context, req Request) (protocol.Decision, error)
}

// Func adapts a plain function to Decider.
type Func func(ctx context.Context, req Request) (protocol.Decision, error)

func (f Func) Decide(ctx context.Context, req Request) (protocol.Decision, error) { return f(ctx, req) }

// Noop never intervenes.
type Noop struct{}

func (Noop) Decide(context.Context, Request) (protocol.Decision, error) {
	return protocol.Decision{}, nil
}

// Intervention builds a decision that issues calls, or an empty one.
func Intervention(calls ...protocol.ToolCall) protocol.Decision {
	if len(calls) == 0 {
		return protocol.Decision{}
	}
	return protocol.Decision{Intervene: true, ToolCalls: calls}
}
