package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction is an up or down vote on a template.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is up or down.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Sign is +1 for up, -1 for down and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	}
	return 0
}

// Feedback is one member's opinion of a template. There is at most one per (user, template).
type Feedback struct {
	ID         uuid.UUID `json:"id"`
	GuildID    string    `json:"guild_id"`
	TemplateID uuid.UUID `json:"template_id"`
	EventID    uuid.UUID `json:"event_id"`
	UserID     string    `json:"user_id"`
	Direction  Direction `json:"direction"`
	Applied    float64   `json:"applied_delta"` // weight change this vote made after clamping
	CreatedAt  time.Time `json:"created_at"`
}
