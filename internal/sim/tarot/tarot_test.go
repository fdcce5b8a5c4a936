package tarot

import (
	"math/rand"
	"testing"

	"eris.ai/internal/sim/catalogs"
	"eris.ai/internal/sim/event"
)

func TestDominantDefaultsToFool(t *testing.T) {
	var p Profile
	if p.Dominant() != Fool {
		t.Fatalf("dominant=%v", p.Dominant())
	}
	if p.Strength() != 0 {
		t.Fatalf("strength=%v", p.Strength())
	}
}

func TestDriftDecaysOthers(t *testing.T) {
	var p Profile
	p.Seed(Moon, 0.5)
	p.Drift(Tower, 0.2)
	if p.Weight(Tower) != 0.2 {
		t.Fatalf("tower=%v", p.Weight(Tower))
	}
	if got := p.Weight(Moon); got < 0.489 || got > 0.491 {
		t.Fatalf("moon should decay by 0.01, got %v", got)
	}
	if p.Weight(Fool) != 0 {
		t.Fatalf("zero weights stay floored")
	}
	if p.Dominant() != Moon {
		t.Fatalf("dominant=%v", p.Dominant())
	}
	want := p.Weight(Moon) / (p.Weight(Moon) + p.Weight(Tower))
	if p.Strength() != want {
		t.Fatalf("strength=%v want %v", p.Strength(), want)
	}
}

func TestWeightsStayBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var p Profile
	for i := 0; i < 5000; i++ {
		p.Drift(Card(rng.Intn(NumCards)), rng.Float64()*0.8-0.2)
		for c, w := range p.Weights {
			if w < 0 || w > MaxWeight {
				t.Fatalf("step %d: card %v weight %v out of bounds", i, Card(c), w)
			}
		}
	}
}

func TestRepeatedReinforcementConsolidates(t *testing.T) {
	var p Profile
	for c := 0; c < NumCards; c++ {
		p.Seed(Card(c), 0.3)
	}
	for i := 0; i < 40; i++ {
		p.Drift(Hermit, 0.05)
	}
	if p.Weight(Hermit) != MaxWeight {
		t.Fatalf("hermit should cap at 1, got %v", p.Weight(Hermit))
	}
	if p.Weight(Star) != 0 {
		t.Fatalf("others should decay to zero, star=%v", p.Weight(Star))
	}
	if p.Strength() != 1 {
		t.Fatalf("strength=%v", p.Strength())
	}
}

func TestRules(t *testing.T) {
	var p Profile
	Apply(&p, event.Death{Base: event.Base{Player: "Alice"}})
	if p.Weight(Death) != 0.3 {
		t.Fatalf("death drift=%v", p.Weight(Death))
	}
	var q Profile
	Apply(&q, event.Dimension{From: catalogs.Overworld, To: catalogs.Nether})
	if q.Weight(Fool) != 0.15 {
		t.Fatalf("nether drift=%v", q.Weight(Fool))
	}
	if n := NudgesFor(event.Inventory{Action: event.InventoryRemove, Item: "diamond", Count: 1}); len(n) != 0 {
		t.Fatalf("removals should not drift: %v", n)
	}
}

func TestCardText(t *testing.T) {
	var c Card
	if err := c.UnmarshalText([]byte("tower")); err != nil || c != Tower {
		t.Fatalf("parse tower: %v %v", c, err)
	}
	if err := c.UnmarshalText([]byte("JOKER")); err == nil {
		t.Fatalf("expected error")
	}
	if Card(42).String() != "Card(42)" {
		t.Fatalf("out of range string")
	}
}
