package scenario

import (
	"fmt"
	"strings"
)

// Validation rules reported in Issue.Rule.
const (
	RuleParse          = "parse"
	RuleSchema         = "schema"
	RuleUnknownPlayer  = "unknown_player"
	RulePrerequisite   = "advancement_prerequisite"
	RuleDeadPlayer     = "dead_player"
	RuleCapabilityGate = "capability_gate"
	RuleParty          = "party"
	RuleIntervention   = "intervention"
)

// Issue is one violated rule. Event is -1 when the issue is not tied to an event.
type Issue struct {
	Rule    string `json:"rule"`
	Event   int    `json:"event"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	if i.Event >= 0 {
		fmt.Fprintf(&b, "events[%d]", i.Event)
		if i.Field != "" {
			b.WriteString(".")
			b.WriteString(i.Field)
		}
		b.WriteString(": ")
	} else if i.Field != "" {
		b.WriteString(i.Field)
		b.WriteString(": ")
	}
	b.WriteString(i.Message)
	fmt.Fprintf(&b, " [%s]", i.Rule)
	return b.String()
}

// ValidationError is returned for any scenario that must not be executed.
type ValidationError struct {
	Scenario string
	Issues   []Issue
}

func (e *ValidationError) Error() string {
	name := e.Scenario
	if name == "" {
		name = "scenario"
	}
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", name, e.Issues[0])
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.String())
	}
	return fmt.Sprintf("%s: %d issues: %s", name, len(e.Issues), strings.Join(parts, "; "))
}

// Has reports whether any issue matches rule.
func (e *ValidationError) Has(rule string) bool {
	for _, is := range e.Issues {
		if is.Rule == rule {
			return true
		}
	}
	return false
}
