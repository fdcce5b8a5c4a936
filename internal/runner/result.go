package runner

import (
	"encoding/json"
	"time"

	"eris.ai/internal/scoring"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/trace"
)

// Result describes one scenario run. A failed run still carries whatever
// trace was recorded before the failure.
type Result struct {
	RunID    string
	Scenario string
	Seed     int64

	Success bool
	Error   string

	Victory        bool
	Deaths         []string
	TotalEvents    int
	TotalToolCalls int
	Interventions  int
	Timeouts       int
	FinalPhase     pressure.Phase
	FinalFracture  float64

	StartedAt time.Time
	Duration  time.Duration
	Trace     *trace.Trace
	Score     scoring.Score
}

type resultJSON struct {
	RunID          string         `json:"run_id"`
	Scenario       string         `json:"scenario"`
	Seed           int64          `json:"seed"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	Victory        bool           `json:"victory"`
	Deaths         []string       `json:"deaths"`
	TotalEvents    int            `json:"total_events"`
	TotalToolCalls int            `json:"total_tool_calls"`
	Interventions  int            `json:"interventions"`
	Timeouts       int            `json:"decision_timeouts"`
	FinalPhase     pressure.Phase `json:"final_phase"`
	FinalFracture  float64        `json:"final_fracture"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMS     int64          `json:"duration_ms"`
	Trace          *trace.Trace   `json:"trace"`
	Score          scoring.Score  `json:"score"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	deaths := r.Deaths
	if deaths == nil {
		deaths = []string{}
	}
	return json.Marshal(resultJSON{
		RunID:          r.RunID,
		Scenario:       r.Scenario,
		Seed:           r.Seed,
		Success:        r.Success,
		Error:          r.Error,
		Victory:        r.Victory,
		Deaths:         deaths,
		TotalEvents:    r.TotalEvents,
		TotalToolCalls: r.TotalToolCalls,
		Interventions:  r.Interventions,
		Timeouts:       r.Timeouts,
		FinalPhase:     r.FinalPhase,
		FinalFracture:  r.FinalFracture,
		StartedAt:      r.StartedAt,
		DurationMS:     r.Duration.Milliseconds(),
		Trace:          r.Trace,
		Score:          r.Score,
	})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Result{
		RunID:          raw.RunID,
		Scenario:       raw.Scenario,
		Seed:           raw.Seed,
		Success:        raw.Success,
		Error:          raw.Error,
		Victory:        raw.Victory,
		Deaths:         raw.Deaths,
		TotalEvents:    raw.TotalEvents,
		TotalToolCalls: raw.TotalToolCalls,
		Interventions:  raw.Interventions,
		Timeouts:       raw.Timeouts,
		FinalPhase:     raw.FinalPhase,
		FinalFracture:  raw.FinalFracture,
		StartedAt:      raw.StartedAt,
		Duration:       time.Duration(raw.DurationMS) * time.Millisecond,
		Trace:          raw.Trace,
		Score:          raw.Score,
	}
	return nil
}

// Rescore recomputes the score from the stored trace.
func (r *Result) Rescore() scoring.Score {
	if r.Trace == nil {
		return scoring.Score{}
	}
	return scoring.ScoreRun(r.Trace, r.Duration, r.RunID)
}

// fill copies the trace aggregates into the result.
func (r *Result) fill(tr *trace.Trace) {
	r.Trace = tr
	r.Victory = tr.Victory()
	r.Deaths = tr.Deaths()
	r.TotalEvents = tr.TotalEvents()
	r.TotalToolCalls = tr.TotalToolCalls()
	r.FinalPhase = tr.FinalPhase()
	r.FinalFracture = tr.FinalFracture()
	r.Score = scoring.ScoreRun(tr, r.Duration, r.RunID)
}
