package catalog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aura-community/challenges/internal/models"
)

// Seed is the YAML catalog file loaded at startup.
type Seed struct {
	Guilds    []string       `yaml:"guilds"`
	Templates []SeedTemplate `yaml:"templates"`
}

// SeedTemplate is one catalog entry in the seed file.
type SeedTemplate struct {
	Text           string            `yaml:"text"`
	Category       models.Category   `yaml:"category"`
	CompletionType string            `yaml:"completion_type"`
	Thresholds     models.Thresholds `yaml:"thresholds"`
	Weight         float64           `yaml:"weight"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}
	for i, t := range seed.Templates {
		if t.Text == "" || t.Category == "" {
			return nil, fmt.Errorf("template %d: text and category are required", i)
		}
		th := t.Thresholds
		if th.Bronze <= 0 || th.Silver < th.Bronze || th.Gold < th.Silver {
			return nil, fmt.Errorf("template %q: thresholds must be positive and ascending", t.Text)
		}
	}
	return &seed, nil
}

// ApplySeed upserts every seed template into every seed guild. Existing weights are kept.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed) (int, error) {
	n := 0
	for _, guildID := range seed.Guilds {
		for _, st := range seed.Templates {
			weight := st.Weight
			if weight <= 0 {
				weight = 1.0
			}
			t := &models.ChallengeTemplate{
				GuildID:        guildID,
				Text:           st.Text,
				Category:       st.Category,
				CompletionType: st.CompletionType,
				Thresholds:     st.Thresholds,
				Weight:         weight,
			}
			if err := s.store.UpsertTemplate(ctx, t); err != nil {
				return n, fmt.Errorf("seed %q for guild %s: %w", st.Text, guildID, err)
			}
			n++
		}
	}
	s.logger.Info("catalog seeded", zap.Int("templates", n), zap.Int("guilds", len(seed.Guilds)))
	return n, nil
}
