package scenario

import (
	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/event"
	"eris.ai/internal/sim/player"
)

type Difficulty string

const (
	Easy    Difficulty = "easy"
	Medium  Difficulty = "medium"
	Hard    Difficulty = "hard"
	Extreme Difficulty = "extreme"
)

type Metadata struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	// Seed for the world RNG; zero derives one from Name.
	Seed int64 `json:"seed,omitempty"`
}

// Intervention is a scripted batch of tool calls issued after the event at
// index After has been applied.
type Intervention struct {
	After int                 `json:"after"`
	Tools []protocol.ToolCall `json:"tools"`
}

// Scenario is a validated, ready-to-run definition.
type Scenario struct {
	Metadata Metadata
	// Preset is set when the party came from a named preset.
	Preset        string
	Party         []player.Definition
	Events        []event.Event
	Interventions []Intervention
	// Warnings are non-fatal findings from validation.
	Warnings []string
	// Path is the source file, empty for in-memory scenarios.
	Path string
}

func (s *Scenario) Name() string { return s.Metadata.Name }

func (s *Scenario) PartyNames() []string {
	out := make([]string, 0, len(s.Party))
	for _, p := range s.Party {
		out = append(out, p.Name)
	}
	return out
}

// InterventionsAfter returns the scripted tool calls for event index i.
func (s *Scenario) InterventionsAfter(i int) []protocol.ToolCall {
	var out []protocol.ToolCall
	for _, iv := range s.Interventions {
		if iv.After == i {
			out = append(out, iv.Tools...)
		}
	}
	return out
}

// New builds a scenario in code and runs the same semantic checks as the file
// loader. Schema range checks do not apply.
func New(meta Metadata, party []player.Definition, events []event.Event, interventions ...Intervention) (*Scenario, error) {
	s := &Scenario{
		Metadata:      meta,
		Party:         party,
		Events:        events,
		Interventions: interventions,
	}
	if s.Metadata.Name == "" {
		s.Metadata.Name = "inline"
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
