package pressure

import "fmt"

type Phase int

const (
	Normal Phase = iota
	Rising
	Critical
	Breaking
	Apocalypse
)

var phaseNames = []string{"normal", "rising", "critical", "breaking", "apocalypse"}

// Thresholds are inclusive lower bounds on fracture, highest first.
var thresholds = []struct {
	min   float64
	phase Phase
}{
	{ApocalypseFracture, Apocalypse},
	{120, Breaking},
	{80, Critical},
	{50, Rising},
}

const (
	// ApocalypseFracture latches the phase-level apocalypse signal.
	ApocalypseFracture = 150.0
	// HardApocalypseFracture latches the separate apocalypse event.
	HardApocalypseFracture = 200.0
)

// PhaseFor maps fracture to its phase.
func PhaseFor(fracture float64) Phase {
	for _, t := range thresholds {
		if fracture >= t.min {
			return t.phase
		}
	}
	return Normal
}

// Threshold returns the fracture at which ph begins.
func Threshold(ph Phase) float64 {
	for _, t := range thresholds {
		if t.phase == ph {
			return t.min
		}
	}
	return 0
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func ParsePhase(s string) (Phase, bool) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), true
		}
	}
	return Normal, false
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, ok := ParsePhase(string(b))
	if !ok {
		return fmt.Errorf("unknown phase %q", string(b))
	}
	*p = v
	return nil
}
