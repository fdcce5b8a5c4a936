package tarot

import (
	"fmt"
	"strings"
)

type Card int

const (
	Fool Card = iota
	Magician
	Hermit
	Lovers
	Emperor
	Tower
	Death
	Star
	Moon

	NumCards = 9
)

var cardNames = [NumCards]string{"FOOL", "MAGICIAN", "HERMIT", "LOVERS", "EMPEROR", "TOWER", "DEATH", "STAR", "MOON"}

func (c Card) String() string {
	if c < 0 || int(c) >= NumCards {
		return fmt.Sprintf("Card(%d)", int(c))
	}
	return cardNames[c]
}

func ParseCard(s string) (Card, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range cardNames {
		if n == s {
			return Card(i), true
		}
	}
	return 0, false
}

func (c Card) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Card) UnmarshalText(b []byte) error {
	v, ok := ParseCard(string(b))
	if !ok {
		return fmt.Errorf("unknown tarot card %q", string(b))
	}
	*c = v
	return nil
}

const (
	MaxWeight = 1.0
	// DecayPerDrift is taken from every other card on each drift.
	DecayPerDrift = 0.01
)

// Profile is a player's archetype weight vector.
type Profile struct {
	Weights [NumCards]float64
}

// Drift reinforces card by amount (capped at MaxWeight) and decays all others.
// Negative amounts weaken the card but never below zero.
func (p *Profile) Drift(card Card, amount float64) {
	if card < 0 || int(card) >= NumCards {
		return
	}
	for i := range p.Weights {
		if Card(i) == card {
			p.Weights[i] = clampWeight(p.Weights[i] + amount)
			continue
		}
		p.Weights[i] = clampWeight(p.Weights[i] - DecayPerDrift)
	}
}

// Seed sets an initial weight without decaying others.
func (p *Profile) Seed(card Card, weight float64) {
	if card < 0 || int(card) >= NumCards {
		return
	}
	p.Weights[card] = clampWeight(weight)
}

// Dominant is the highest-weight card; ties go to the earlier card, so an
// all-zero profile is FOOL.
func (p Profile) Dominant() Card {
	best := Fool
	for i := 1; i < NumCards; i++ {
		if p.Weights[i] > p.Weights[best] {
			best = Card(i)
		}
	}
	return best
}

// Strength is dominant weight over total weight, 0 for an empty profile.
func (p Profile) Strength() float64 {
	sum := 0.0
	for _, w := range p.Weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	return p.Weights[p.Dominant()] / sum
}

func (p Profile) Weight(c Card) float64 {
	if c < 0 || int(c) >= NumCards {
		return 0
	}
	return p.Weights[c]
}

// Map returns the weights keyed by card name.
func (p Profile) Map() map[string]float64 {
	out := make(map[string]float64, NumCards)
	for i, w := range p.Weights {
		out[cardNames[i]] = w
	}
	return out
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
