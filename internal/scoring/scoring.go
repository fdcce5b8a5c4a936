// Package scoring grades a finished run from its trace alone, so stored runs
// can be re-scored later.
package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/pressure"
	"eris.ai/internal/sim/trace"
)

type Outcome string

const (
	PerfectVictory Outcome = "perfect_victory"
	Victory        Outcome = "victory"
	SurvivalLoss   Outcome = "survival_loss"
	TotalFailure   Outcome = "total_failure"
	Incomplete     Outcome = "incomplete"
)

// Weights of the overall score; they sum to 100.
const (
	WeightVictory     = 40.0
	WeightSurvival    = 20.0
	WeightEfficiency  = 15.0
	WeightContainment = 15.0
	WeightRescue      = 10.0
)

const (
	// RescueWindow is how long after a health drop a heal still counts as a rescue.
	RescueWindow = 30.0
	// RescueDanger is the health at or below which an unanswered drop is a failed rescue.
	RescueDanger = 6.0
	// SpikeFracture is the minimum one-step fracture jump for a phase change to count as a spike.
	SpikeFracture = 20.0
)

type FractureMetrics struct {
	MaxFracture         float64        `json:"max_fracture"`
	FinalFracture       float64        `json:"final_fracture"`
	MaxPhase            pressure.Phase `json:"max_phase"`
	FinalPhase          pressure.Phase `json:"final_phase"`
	PhaseChanges        int            `json:"phase_changes"`
	Spikes              int            `json:"spikes"`
	TimeInCritical      float64        `json:"time_in_critical"`
	ApocalypseTriggered bool           `json:"apocalypse_triggered"`
	HardApocalypse      bool           `json:"hard_apocalypse"`
}

type RescueMetrics struct {
	Opportunities int       `json:"opportunities"`
	Rescues       int       `json:"rescues"`
	Failed        int       `json:"failed"`
	Latencies     []float64 `json:"latencies"`
	AvgLatency    float64   `json:"avg_latency"`
	Rate          float64   `json:"rate"`
}

type ToolMetrics struct {
	Total      int            `json:"total"`
	Harmful    int            `json:"harmful"`
	Helpful    int            `json:"helpful"`
	Narrative  int            `json:"narrative"`
	Unknown    int            `json:"unknown"`
	NoOps      int            `json:"no_ops"`
	ByTool     map[string]int `json:"by_tool"`
	Efficiency float64        `json:"efficiency"`
}

// Breakdown is the points each component contributed to Overall.
type Breakdown struct {
	Victory     float64 `json:"victory"`
	Survival    float64 `json:"survival"`
	Efficiency  float64 `json:"tool_efficiency"`
	Containment float64 `json:"fracture_containment"`
	Rescue      float64 `json:"rescue_rate"`
}

type Score struct {
	RunID          string          `json:"run_id"`
	Scenario       string          `json:"scenario"`
	Outcome        Outcome         `json:"outcome"`
	Victory        bool            `json:"victory"`
	Deaths         []string        `json:"deaths"`
	PartySize      int             `json:"party_size"`
	Survivors      int             `json:"survivors"`
	TotalEvents    int             `json:"total_events"`
	TotalToolCalls int             `json:"total_tool_calls"`
	DurationMS     int64           `json:"duration_ms"`
	Fracture       FractureMetrics `json:"fracture"`
	Rescue         RescueMetrics   `json:"rescue"`
	Tools          ToolMetrics     `json:"tools"`
	Breakdown      Breakdown       `json:"breakdown"`
	Overall        float64         `json:"overall_score"`
}

// Duration is the wall-clock time the run took.
func (s Score) Duration() time.Duration { return time.Duration(s.DurationMS) * time.Millisecond }

// ScoreRun grades tr. It never mutates the trace.
func ScoreRun(tr *trace.Trace, duration time.Duration, runID string) Score {
	diffs := tr.Diffs()
	s := Score{
		RunID:          runID,
		Scenario:       tr.ScenarioName(),
		Victory:        tr.Victory(),
		Deaths:         tr.Deaths(),
		PartySize:      tr.PartySize(),
		TotalEvents:    tr.TotalEvents(),
		TotalToolCalls: tr.TotalToolCalls(),
		DurationMS:     duration.Milliseconds(),
		Fracture:       fractureMetrics(tr, diffs),
		Rescue:         rescueMetrics(diffs),
		Tools:          toolMetrics(diffs),
	}
	dead := deadAtEnd(diffs)
	s.Survivors = max(s.PartySize-dead, 0)
	s.Outcome = outcome(s, dead)
	s.Breakdown, s.Overall = overall(s)
	return s
}

func outcome(s Score, deadAtEnd int) Outcome {
	switch {
	case s.Victory && len(s.Deaths) == 0 && s.Fracture.MaxPhase <= pressure.Rising:
		return PerfectVictory
	case s.Victory:
		return Victory
	case len(s.Deaths) > 0 && s.PartySize > 0 && deadAtEnd >= s.PartySize:
		return TotalFailure
	case len(s.Deaths) > 0:
		return SurvivalLoss
	}
	return Incomplete
}

func overall(s Score) (Breakdown, float64) {
	var b Breakdown
	if s.Victory {
		b.Victory = WeightVictory
	}
	if s.PartySize > 0 {
		b.Survival = WeightSurvival * float64(s.Survivors) / float64(s.PartySize)
	}
	b.Efficiency = WeightEfficiency * s.Tools.Efficiency
	b.Containment = WeightContainment * (1 - math.Min(s.Fracture.MaxFracture, pressure.ApocalypseFracture)/pressure.ApocalypseFracture)
	b.Rescue = WeightRescue * s.Rescue.Rate
	total := b.Victory + b.Survival + b.Efficiency + b.Containment + b.Rescue
	return b, math.Max(0, math.Min(100, total))
}

func fractureMetrics(tr *trace.Trace, diffs []trace.Diff) FractureMetrics {
	m := FractureMetrics{
		MaxFracture:         tr.MaxFracture(),
		FinalFracture:       tr.FinalFracture(),
		MaxPhase:            tr.MaxPhase(),
		FinalPhase:          tr.FinalPhase(),
		ApocalypseTriggered: tr.ApocalypseTriggered(),
	}
	phase := pressure.Normal
	last := 0.0
	for _, d := range diffs {
		if phase >= pressure.Critical {
			m.TimeInCritical += d.T - last
		}
		last = d.T
		phase = d.NewPhase
		if d.HardApocalypse {
			m.HardApocalypse = true
		}
		if !d.PhaseChanged {
			continue
		}
		m.PhaseChanges++
		if d.FractureAfter-d.FractureBefore > SpikeFracture {
			m.Spikes++
		}
	}
	return m
}

type healthStep struct {
	player string
	t      float64
	old    float64
	new    float64
}

func healthSteps(diffs []trace.Diff) []healthStep {
	var out []healthStep
	for _, d := range diffs {
		for _, c := range d.Changes {
			if c.Field != "health" || c.Player == "" {
				continue
			}
			o, ok1 := number(c.Old)
			n, ok2 := number(c.New)
			if ok1 && ok2 && o != n {
				out = append(out, healthStep{player: c.Player, t: d.T, old: o, new: n})
			}
		}
	}
	return out
}

func rescueMetrics(diffs []trace.Diff) RescueMetrics {
	m := RescueMetrics{Latencies: []float64{}}
	steps := healthSteps(diffs)
	for i, s := range steps {
		if s.new >= s.old {
			continue
		}
		paired := false
		for _, h := range steps[i+1:] {
			if h.player != s.player || h.new <= h.old {
				continue
			}
			if h.t-s.t <= RescueWindow {
				m.Rescues++
				m.Latencies = append(m.Latencies, h.t-s.t)
				paired = true
			}
			break
		}
		if !paired && s.new <= RescueDanger {
			m.Failed++
		}
	}
	m.Opportunities = m.Rescues + m.Failed
	if len(m.Latencies) > 0 {
		sum := 0.0
		for _, l := range m.Latencies {
			sum += l
		}
		m.AvgLatency = sum / float64(len(m.Latencies))
	}
	m.Rate = 1
	if m.Opportunities > 0 {
		m.Rate = float64(m.Rescues) / float64(m.Opportunities)
	}
	return m
}

func toolMetrics(diffs []trace.Diff) ToolMetrics {
	m := ToolMetrics{ByTool: map[string]int{}}
	for _, d := range diffs {
		if d.SourceType != trace.SourceToolCall {
			continue
		}
		m.Total++
		m.ByTool[d.SourceName]++
		if !d.HasChanges() {
			m.NoOps++
		}
		switch catalogs.CategoryOf(d.SourceName) {
		case catalogs.ToolHarmful:
			m.Harmful++
		case catalogs.ToolHelpful:
			m.Helpful++
		case catalogs.ToolNarrative:
			m.Narrative++
		default:
			m.Unknown++
		}
	}
	m.Efficiency = 0.5
	if n := m.Helpful + m.Harmful; n > 0 {
		m.Efficiency = float64(m.Helpful) / float64(n)
	}
	return m
}

// deadAtEnd counts players whose last recorded alive change was a death.
func deadAtEnd(diffs []trace.Diff) int {
	alive := map[string]bool{}
	for _, d := range diffs {
		for _, c := range d.Changes {
			if c.Field == "alive" && c.Player != "" {
				v, _ := c.New.(bool)
				alive[c.Player] = v
			}
		}
	}
	n := 0
	for _, a := range alive {
		if !a {
			n++
		}
	}
	return n
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// Leaderboard orders scores best first; ties keep run id order.
func Leaderboard(scores []Score) []Score {
	out := append([]Score(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}
