package catalog

import (
	"math"

	"github.com/aura-community/challenges/internal/models"
)

// WeightPolicy bounds how feedback moves a template's sampling weight.
type WeightPolicy struct {
	Step    float64
	Floor   float64
	Ceiling float64
}

// DefaultWeightPolicy moves weights by 0.1 within [0.1, 10].
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{Step: 0.1, Floor: 0.1, Ceiling: 10}
}

// Shift moves weight for a vote in direction next that replaces prev, which is nil for
// a first vote. The step prev actually applied is reversed before the new clamped step
// lands, so a flip at a bound undoes only what the bound let through. applied is the
// step to store on the new feedback; ok is false when next repeats prev.
func (p WeightPolicy) Shift(weight float64, prev *models.Feedback, next models.Direction) (w, applied float64, ok bool) {
	base := weight
	if prev != nil {
		if prev.Direction == next {
			return weight, 0, false
		}
		base = p.Apply(weight, -prev.Applied)
	}
	w = p.Apply(base, next.Sign()*p.Step)
	return w, round(w - base), true
}

// Apply shifts weight by delta and clamps it to the policy bounds.
func (p WeightPolicy) Apply(weight, delta float64) float64 {
	w := weight + delta
	if w < p.Floor {
		w = p.Floor
	}
	if p.Ceiling > 0 && w > p.Ceiling {
		w = p.Ceiling
	}
	return round(w)
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
