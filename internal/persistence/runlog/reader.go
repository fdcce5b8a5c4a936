package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/sim/trace"
)

// Decision is a decision line of an exported run.
type Decision struct {
	Step     int               `json:"step"`
	Decision protocol.Decision `json:"decision"`
}

// Run is an exported run read back from disk.
type Run struct {
	Info      runner.RunInfo
	Diffs     []trace.Diff
	Decisions []Decision
	// Result is nil when the run never finished.
	Result *runner.Result
}

// ReadFile reads an exported run.
func ReadFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	run, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

func Read(r io.Reader) (*Run, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	dec.UseNumber()
	run := &Run{}
	for line := 1; ; line++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && rec.Kind != KindHeader {
			return nil, fmt.Errorf("line 1: want %s record, got %q", KindHeader, rec.Kind)
		}
		switch rec.Kind {
		case KindHeader:
			if line != 1 || rec.Run == nil {
				return nil, fmt.Errorf("line %d: misplaced header", line)
			}
			run.Info = *rec.Run
		case KindDiff:
			if rec.Diff == nil {
				return nil, fmt.Errorf("line %d: diff record without diff", line)
			}
			run.Diffs = append(run.Diffs, *rec.Diff)
		case KindDecision:
			if rec.Decision == nil {
				return nil, fmt.Errorf("line %d: decision record without decision", line)
			}
			run.Decisions = append(run.Decisions, Decision{Step: rec.Step, Decision: *rec.Decision})
		case KindResult:
			run.Result = rec.Result
		default:
			return nil, fmt.Errorf("line %d: unknown record kind %q", line, rec.Kind)
		}
	}
	if run.Info.RunID == "" {
		return nil, errors.New("empty run log")
	}
	if run.Result != nil {
		run.Result.Trace = run.Trace()
	}
	return run, nil
}

// Trace rebuilds the run's trace from its diff lines.
func (r *Run) Trace() *trace.Trace {
	return trace.Rebuild(r.Info.Scenario, len(r.Info.Party), r.Diffs)
}

// ToolCalls regroups the recorded tool calls by the index of the event they
// followed, the shape a scripted decider replays.
func (r *Run) ToolCalls() map[int][]protocol.ToolCall {
	out := map[int][]protocol.ToolCall{}
	step := -1
	for _, d := range r.Diffs {
		switch d.SourceType {
		case trace.SourceEvent:
			step++
		case trace.SourceToolCall:
			if step < 0 {
				continue
			}
			out[step] = append(out[step], protocol.ToolCall{Name: d.SourceName, Args: normalizeArgs(d.Args)})
		}
	}
	return out
}

// normalizeArgs turns decoded json.Numbers back into int or float64.
func normalizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		return normalizeArgs(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeValue(x[i])
		}
		return out
	}
	return v
}
