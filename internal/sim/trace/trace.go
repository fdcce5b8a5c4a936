package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"eris.ai/internal/sim/pressure"
)

// Trace is the append-only log of one run. Add is the only mutation.
type Trace struct {
	scenario  string
	partySize int

	diffs []Diff

	totalEvents    int
	totalToolCalls int
	deaths         []string
	victory        bool
	finalPhase     pressure.Phase
	finalFracture  float64
	maxPhase       pressure.Phase
	maxFracture    float64
	apocalypse     bool
}

func New(scenario string, partySize int) *Trace {
	return &Trace{scenario: scenario, partySize: partySize}
}

// Add assigns the next sequence number, stores a copy of d and updates the
// aggregates. The stored diff is returned.
func (t *Trace) Add(d *Diff) Diff {
	cp := d.clone()
	cp.Seq = len(t.diffs) + 1
	t.diffs = append(t.diffs, cp)

	switch cp.SourceType {
	case SourceEvent:
		t.totalEvents++
	case SourceToolCall:
		t.totalToolCalls++
	}
	if cp.CausedDeath && cp.Player != "" {
		t.deaths = append(t.deaths, cp.Player)
	}
	if cp.CausedVictory {
		t.victory = true
	}
	if cp.ApocalypseTriggered {
		t.apocalypse = true
	}
	t.finalPhase = cp.NewPhase
	t.finalFracture = cp.FractureAfter
	if cp.NewPhase > t.maxPhase {
		t.maxPhase = cp.NewPhase
	}
	if cp.FractureAfter > t.maxFracture {
		t.maxFracture = cp.FractureAfter
	}
	d.Seq = cp.Seq
	return cp
}

func (t *Trace) ScenarioName() string       { return t.scenario }
func (t *Trace) PartySize() int             { return t.partySize }
func (t *Trace) Len() int                   { return len(t.diffs) }
func (t *Trace) TotalEvents() int           { return t.totalEvents }
func (t *Trace) TotalToolCalls() int        { return t.totalToolCalls }
func (t *Trace) Victory() bool              { return t.victory }
func (t *Trace) FinalPhase() pressure.Phase { return t.finalPhase }
func (t *Trace) FinalFracture() float64     { return t.finalFracture }
func (t *Trace) MaxPhase() pressure.Phase   { return t.maxPhase }
func (t *Trace) MaxFracture() float64       { return t.maxFracture }
func (t *Trace) ApocalypseTriggered() bool  { return t.apocalypse }
func (t *Trace) Deaths() []string           { return append([]string{}, t.deaths...) }
func (t *Trace) At(i int) Diff              { return t.diffs[i].clone() }

// Last returns the most recent diff.
func (t *Trace) Last() (Diff, bool) {
	if len(t.diffs) == 0 {
		return Diff{}, false
	}
	return t.diffs[len(t.diffs)-1].clone(), true
}

// Diffs returns a copy of the recorded diffs in sequence order.
func (t *Trace) Diffs() []Diff {
	out := make([]Diff, len(t.diffs))
	for i, d := range t.diffs {
		out[i] = d.clone()
	}
	return out
}

// Digest is the hex SHA-256 of the canonical JSON encoding of all diffs.
// It is empty when a diff cannot be encoded; use DigestDiffs for the error.
func (t *Trace) Digest() string {
	d, err := DigestDiffs(t.diffs)
	if err != nil {
		return ""
	}
	return d
}

func DigestDiffs(diffs []Diff) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i := range diffs {
		// Map keys are sorted by encoding/json, which keeps the encoding canonical.
		if err := enc.Encode(&diffs[i]); err != nil {
			return "", fmt.Errorf("digest diff %d: %w", diffs[i].Seq, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type traceJSON struct {
	ScenarioName   string         `json:"scenario_name"`
	PartySize      int            `json:"party_size"`
	TotalEvents    int            `json:"total_events"`
	TotalToolCalls int            `json:"total_tool_calls"`
	Deaths         []string       `json:"deaths"`
	Victory        bool           `json:"victory"`
	FinalPhase     pressure.Phase `json:"final_phase"`
	FinalFracture  float64        `json:"final_fracture"`
	Diffs          []Diff         `json:"diffs"`
}

func (t *Trace) MarshalJSON() ([]byte, error) {
	diffs := t.diffs
	if diffs == nil {
		diffs = []Diff{}
	}
	return json.Marshal(traceJSON{
		ScenarioName:   t.scenario,
		PartySize:      t.partySize,
		TotalEvents:    t.totalEvents,
		TotalToolCalls: t.totalToolCalls,
		Deaths:         t.Deaths(),
		Victory:        t.victory,
		FinalPhase:     t.finalPhase,
		FinalFracture:  t.finalFracture,
		Diffs:          diffs,
	})
}

// UnmarshalJSON rebuilds the trace by replaying its diffs through Add, so the
// aggregates always agree with the log.
func (t *Trace) UnmarshalJSON(b []byte) error {
	var raw traceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Trace{scenario: raw.ScenarioName, partySize: raw.PartySize}
	for i := range raw.Diffs {
		t.Add(&raw.Diffs[i])
	}
	return nil
}

// Rebuild creates a trace from diffs read back from storage.
func Rebuild(scenario string, partySize int, diffs []Diff) *Trace {
	t := New(scenario, partySize)
	for i := range diffs {
		t.Add(&diffs[i])
	}
	return t
}
