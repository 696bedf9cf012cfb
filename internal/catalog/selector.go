package catalog

import (
	"math/rand/v2"

	"github.com/aura-community/challenges/internal/models"
)

// CandidateCount is the number of options a poll proposes.
const CandidateCount = 3

// minSampleWeight keeps a template at the weight floor selectable.
const minSampleWeight = 0.01

// Source is the randomness used for sampling. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// SelectCandidates draws up to n distinct templates of category without replacement,
// each draw biased by the template's sampling weight. The result is in draw order.
// Fewer than n eligible templates returns all of them.
func SelectCandidates(templates []models.ChallengeTemplate, category models.Category, n int, src Source) []models.ChallengeTemplate {
	if src == nil {
		src = globalSource{}
	}
	pool := make([]models.ChallengeTemplate, 0, len(templates))
	for _, t := range templates {
		if t.Category == category {
			pool = append(pool, t)
		}
	}

	picked := make([]models.ChallengeTemplate, 0, n)
	for len(picked) < n && len(pool) > 0 {
		var total float64
		for _, t := range pool {
			total += sampleWeight(t)
		}
		target := src.Float64() * total
		idx := len(pool) - 1
		for i, t := range pool {
			target -= sampleWeight(t)
			if target < 0 {
				idx = i
				break
			}
		}
		picked = append(picked, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picked
}

func sampleWeight(t models.ChallengeTemplate) float64 {
	if t.Weight < minSampleWeight {
		return minSampleWeight
	}
	return t.Weight
}
