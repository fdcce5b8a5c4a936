package runlog

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/sim/trace"
)

type Kind string

const (
	KindHeader   Kind = "header"
	KindDiff     Kind = "diff"
	KindDecision Kind = "decision"
	KindResult   Kind = "result"
)

// Record is one line of an exported run. The header comes first and the
// result, when the run finished, comes last.
type Record struct {
	Kind Kind `json:"kind"`

	Run      *runner.RunInfo    `json:"run,omitempty"`
	Diff     *trace.Diff        `json:"diff,omitempty"`
	Step     int                `json:"step,omitempty"`
	Decision *protocol.Decision `json:"decision,omitempty"`
	// Result is stored without its trace; the diff lines are the trace.
	Result *runner.Result `json:"result,omitempty"`
}
