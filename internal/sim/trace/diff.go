package trace

import (
	"reflect"

	"eris.ai/internal/sim/pressure"
)

type SourceType string

const (
	SourceEvent    SourceType = "event"
	SourceToolCall SourceType = "tool_call"
)

// StateChange is one field moving from Old to New. Player is empty for world fields.
type StateChange struct {
	Field  string `json:"field"`
	Player string `json:"player,omitempty"`
	Old    any    `json:"old"`
	New    any    `json:"new"`
}

// Diff records every observable change caused by a single event or tool call.
type Diff struct {
	Seq        int            `json:"seq"`
	SourceType SourceType     `json:"source_type"`
	SourceName string         `json:"source_name"`
	Player     string         `json:"player,omitempty"`
	T          float64        `json:"t"`
	Args       map[string]any `json:"args,omitempty"`
	Changes    []StateChange  `json:"changes"`
	// Reason explains a diff without changes, e.g. "unknown_tool".
	Reason string `json:"reason,omitempty"`

	CausedDeath   bool `json:"caused_death,omitempty"`
	CausedVictory bool `json:"caused_victory,omitempty"`

	PhaseChanged   bool           `json:"triggered_phase_change,omitempty"`
	OldPhase       pressure.Phase `json:"old_phase"`
	NewPhase       pressure.Phase `json:"new_phase"`
	FractureBefore float64        `json:"fracture_before"`
	FractureAfter  float64        `json:"fracture_after"`

	ApocalypseTriggered bool `json:"apocalypse_triggered,omitempty"`
	HardApocalypse      bool `json:"hard_apocalypse,omitempty"`
}

func NewDiff(src SourceType, name, player string) *Diff {
	return &Diff{SourceType: src, SourceName: name, Player: player, Changes: []StateChange{}}
}

// AddChange records a world-level field change; equal values are skipped.
func (d *Diff) AddChange(field string, old, new any) {
	d.AddPlayerChange("", field, old, new)
}

// AddPlayerChange records a change scoped to player; equal values are skipped.
func (d *Diff) AddPlayerChange(player, field string, old, new any) {
	if reflect.DeepEqual(old, new) {
		return
	}
	d.Changes = append(d.Changes, StateChange{Field: field, Player: player, Old: old, New: new})
}

func (d *Diff) HasChanges() bool { return len(d.Changes) > 0 }

// NoOp marks the diff as an absorbed action with the given reason.
func (d *Diff) NoOp(reason string) {
	if d.Reason == "" {
		d.Reason = reason
	}
}

// Change returns the first change of field for player.
func (d Diff) Change(player, field string) (StateChange, bool) {
	for _, c := range d.Changes {
		if c.Player == player && c.Field == field {
			return c, true
		}
	}
	return StateChange{}, false
}

func (d Diff) clone() Diff {
	cp := d
	cp.Changes = append([]StateChange(nil), d.Changes...)
	if cp.Changes == nil {
		cp.Changes = []StateChange{}
	}
	if d.Args != nil {
		cp.Args = make(map[string]any, len(d.Args))
		for k, v := range d.Args {
			cp.Args[k] = v
		}
	}
	return cp
}
