package synthetic

import (
	"context"
	"fmt"
	"io"
	"log"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/trace"
	"eris.ai/internal/sim/world"
)

// Client stands in for the live command channel: tool calls go straight to
// the world and come back as command acknowledgements.
type Client struct {
	w      *world.World
	logger *log.Logger

	calls []protocol.ToolCall
	diffs []trace.Diff
}

func NewClient(w *world.World, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{w: w, logger: logger}
}

// Execute applies one tool call. A cancelled context rejects the call
// without touching the world.
func (c *Client) Execute(ctx context.Context, call protocol.ToolCall) (protocol.CommandResult, trace.Diff) {
	if err := ctx.Err(); err != nil {
		return protocol.CommandResult{Code: protocol.ErrTimeout, Message: err.Error()}, trace.Diff{}
	}
	c.calls = append(c.calls, call)
	d := c.w.ApplyToolCall(call)
	c.diffs = append(c.diffs, d)

	res := protocol.CommandResult{Success: true, Reason: d.Reason, Seq: d.Seq}
	if code := protocol.CodeForReason(d.Reason); code != "" {
		res.Success = false
		res.Code = code
		res.Message = fmt.Sprintf("%s: %s", call.Name, d.Reason)
		c.logger.Printf("tool %s rejected: %s", call.Name, d.Reason)
	}
	return res, d
}

// ExecuteAll applies calls in order and stops early if ctx is cancelled.
func (c *Client) ExecuteAll(ctx context.Context, calls []protocol.ToolCall) []protocol.CommandResult {
	out := make([]protocol.CommandResult, 0, len(calls))
	for _, call := range calls {
		res, _ := c.Execute(ctx, call)
		out = append(out, res)
		if res.Code == protocol.ErrTimeout {
			break
		}
	}
	return out
}

func (c *Client) Snapshot() protocol.WorldSnapshot { return c.w.Snapshot() }

// Calls returns every tool call the client accepted, in order.
func (c *Client) Calls() []protocol.ToolCall { return append([]protocol.ToolCall(nil), c.calls...) }

func (c *Client) Diffs() []trace.Diff { return append([]trace.Diff(nil), c.diffs...) }
