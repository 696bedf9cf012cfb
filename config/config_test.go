package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("EVENT_DURATION", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Engine.BronzeRolls)
	assert.Equal(t, 3, cfg.Engine.GoldRolls)
	assert.Equal(t, 7*24*time.Hour, cfg.Engine.EventDuration)
	assert.InDelta(t, 0.1, cfg.Engine.WeightStep, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("TIER_ROLLS_GOLD", "5")
	t.Setenv("EVENT_DURATION", "30m")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("DM_RATE", "2.5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Engine.GoldRolls)
	assert.Equal(t, 30*time.Minute, cfg.Engine.EventDuration)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.InDelta(t, 2.5, cfg.Gateway.DMRate, 1e-9)
}

func TestEmptyRedisAddrDisablesRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestEvidenceHostsList(t *testing.T) {
	t.Setenv("EVIDENCE_ALLOWED_HOSTS", " cdn.discordapp.com, ,imgur.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.discordapp.com", "imgur.com"}, cfg.Worker.EvidenceHosts)

	t.Setenv("EVIDENCE_ALLOWED_HOSTS", "")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Worker.EvidenceHosts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":   {"STORE_DRIVER": "sqlite"},
		"decreasing rolls": {"TIER_ROLLS_SILVER": "5", "TIER_ROLLS_GOLD": "4"},
		"zero step":        {"WEIGHT_STEP": "0"},
		"ceiling < floor":  {"WEIGHT_FLOOR": "2", "WEIGHT_CEILING": "1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: "5432", DBName: "challenges", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/challenges?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
