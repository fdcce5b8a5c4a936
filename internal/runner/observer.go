package runner

import (
	"time"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/trace"
)

// RunInfo is announced before the first event is applied.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	Party     []string  `json:"party"`
	Seed      int64     `json:"seed"`
	Events    int       `json:"events"`
	StartedAt time.Time `json:"started_at"`
}

// Observer receives a run as it happens. Calls come from the run's own
// goroutine, so an observer shared across a batch must be safe for
// concurrent use.
type Observer interface {
	RunStarted(info RunInfo)
	DiffRecorded(runID string, d trace.Diff)
	Decided(runID string, step int, d protocol.Decision)
	RunFinished(res *Result)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnStart    func(info RunInfo)
	OnDiff     func(runID string, d trace.Diff)
	OnDecision func(runID string, step int, d protocol.Decision)
	OnFinish   func(res *Result)
}

func (o ObserverFuncs) RunStarted(info RunInfo) {
	if o.OnStart != nil {
		o.OnStart(info)
	}
}

func (o ObserverFuncs) DiffRecorded(runID string, d trace.Diff) {
	if o.OnDiff != nil {
		o.OnDiff(runID, d)
	}
}

func (o ObserverFuncs) Decided(runID string, step int, d protocol.Decision) {
	if o.OnDecision != nil {
		o.OnDecision(runID, step, d)
	}
}

func (o ObserverFuncs) RunFinished(res *Result) {
	if o.OnFinish != nil {
		o.OnFinish(res)
	}
}
