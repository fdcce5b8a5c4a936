package pressure

import "math"

// Fracture combines the three pressure terms. It is the only way fracture is derived.
func Fracture(tension, fearSum, chaos float64) float64 {
	return tension + fearSum + chaos
}

// Pressure holds the accumulated world pressure terms for one run.
// Fear lives on players and is summed in by the caller.
type Pressure struct {
	Tension float64
	Karma   float64

	apocalypse     bool
	hardApocalypse bool
}

// AddTension applies delta and floors tension at zero. Non-finite deltas are ignored.
func (p *Pressure) AddTension(delta float64) {
	if !finite(delta) {
		return
	}
	p.Tension = max(p.Tension+delta, 0)
}

// AddKarma applies delta and floors the karma pool at zero. Non-finite deltas are ignored.
func (p *Pressure) AddKarma(delta float64) {
	if !finite(delta) {
		return
	}
	p.Karma = max(p.Karma+delta, 0)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Chaos is the karma term of fracture.
func (p *Pressure) Chaos() float64 { return p.Karma }

// Decay scales tension by factor in [0,1]. Karma is a debt and does not decay.
func (p *Pressure) Decay(factor float64) {
	factor = min(max(factor, 0), 1)
	p.Tension *= factor
}

func (p *Pressure) Fracture(fearSum float64) float64 {
	return Fracture(p.Tension, fearSum, p.Chaos())
}

// Latch records the apocalypse signals for fracture and reports which ones
// fired for the first time. Latched signals never reset.
func (p *Pressure) Latch(fracture float64) (apocalypse, hard bool) {
	if !p.apocalypse && fracture >= ApocalypseFracture {
		p.apocalypse = true
		apocalypse = true
	}
	if !p.hardApocalypse && fracture >= HardApocalypseFracture {
		p.hardApocalypse = true
		hard = true
	}
	return apocalypse, hard
}

func (p *Pressure) ApocalypseTriggered() bool { return p.apocalypse }
func (p *Pressure) HardApocalypse() bool      { return p.hardApocalypse }
