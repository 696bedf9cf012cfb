package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aura-community/challenges/internal/models"
)

func TestWeightPolicyShift(t *testing.T) {
	p := DefaultWeightPolicy()
	up := &models.Feedback{Direction: models.DirectionUp, Applied: 0.1}
	down := &models.Feedback{Direction: models.DirectionDown, Applied: -0.1}
	tests := []struct {
		name        string
		weight      float64
		prev        *models.Feedback
		next        models.Direction
		want        float64
		wantApplied float64
		wantOK      bool
	}{
		{"first up", 1, nil, models.DirectionUp, 1.1, 0.1, true},
		{"first down", 1, nil, models.DirectionDown, 0.9, -0.1, true},
		{"repeat up", 1.1, up, models.DirectionUp, 1.1, 0, false},
		{"repeat down", 0.9, down, models.DirectionDown, 0.9, 0, false},
		{"flip to down", 1.1, up, models.DirectionDown, 0.9, -0.1, true},
		{"flip to up", 0.9, down, models.DirectionUp, 1.1, 0.1, true},
		{"up at ceiling", 10, nil, models.DirectionUp, 10, 0, true},
		{"flip clamped up", 10, &models.Feedback{Direction: models.DirectionUp}, models.DirectionDown, 9.9, -0.1, true},
		{"flip partial up", 10, &models.Feedback{Direction: models.DirectionUp, Applied: 0.05}, models.DirectionDown, 9.85, -0.1, true},
		{"flip clamped down", 0.1, &models.Feedback{Direction: models.DirectionDown}, models.DirectionUp, 0.2, 0.1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, applied, ok := p.Shift(tt.weight, tt.prev, tt.next)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, w, 1e-9)
			assert.InDelta(t, tt.wantApplied, applied, 1e-9)
		})
	}
}

func TestWeightPolicyApplyClamps(t *testing.T) {
	p := DefaultWeightPolicy()
	assert.Equal(t, 1.1, p.Apply(1.0, 0.1))
	assert.Equal(t, 0.1, p.Apply(0.1, -0.1))
	assert.Equal(t, 10.0, p.Apply(10, 0.2))
}
