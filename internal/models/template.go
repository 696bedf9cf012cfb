package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AmountPlaceholder is substituted with a tier threshold when a challenge name is rendered.
const AmountPlaceholder = "{amount}"

// Category identifies an independent lane of the challenge cycle.
type Category string

const (
	CategoryCombat   Category = "combat"
	CategorySkilling Category = "skilling"
	CategoryMinigame Category = "minigame"
	CategorySeasonal Category = "seasonal"
)

// Thresholds holds the quantity a member must reach for each tier.
type Thresholds struct {
	Bronze int `json:"bronze" yaml:"bronze"`
	Silver int `json:"silver" yaml:"silver"`
	Gold   int `json:"gold" yaml:"gold"`
}

// For returns the threshold for tier, or 0 for TierNone.
func (t Thresholds) For(tier Tier) int {
	switch tier {
	case TierBronze:
		return t.Bronze
	case TierSilver:
		return t.Silver
	case TierGold:
		return t.Gold
	}
	return 0
}

// ChallengeTemplate is a catalog entry that can be proposed as a poll candidate.
type ChallengeTemplate struct {
	ID             uuid.UUID  `json:"id"`
	GuildID        string     `json:"guild_id"`
	Text           string     `json:"text"`
	Category       Category   `json:"category"`
	CompletionType string     `json:"completion_type"`
	Thresholds     Thresholds `json:"thresholds"`
	Weight         float64    `json:"weight"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Snapshot copies the fields a poll or event must keep even if the catalog changes later.
func (t ChallengeTemplate) Snapshot() TemplateSnapshot {
	return TemplateSnapshot{
		TemplateID:     t.ID,
		Text:           t.Text,
		Category:       t.Category,
		CompletionType: t.CompletionType,
		Thresholds:     t.Thresholds,
	}
}

// TemplateSnapshot is an immutable copy of a ChallengeTemplate.
type TemplateSnapshot struct {
	TemplateID     uuid.UUID  `json:"template_id"`
	Text           string     `json:"text"`
	Category       Category   `json:"category"`
	CompletionType string     `json:"completion_type"`
	Thresholds     Thresholds `json:"thresholds"`
}

// Name renders the challenge text with every tier threshold, e.g. "Catch 10/25/50 sharks".
func (s TemplateSnapshot) Name() string {
	if !strings.Contains(s.Text, AmountPlaceholder) {
		return s.Text
	}
	amounts := fmt.Sprintf("%d/%d/%d", s.Thresholds.Bronze, s.Thresholds.Silver, s.Thresholds.Gold)
	return strings.ReplaceAll(s.Text, AmountPlaceholder, amounts)
}

// NameFor renders the challenge text for a single tier.
func (s TemplateSnapshot) NameFor(tier Tier) string {
	if tier == TierNone {
		return s.Name()
	}
	return strings.ReplaceAll(s.Text, AmountPlaceholder, fmt.Sprintf("%d", s.Thresholds.For(tier)))
}
