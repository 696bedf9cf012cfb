// Package databasetest provides a migrated PostgreSQL database for repository tests.
package databasetest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aura-community/challenges/pkg/database"
)

var (
	once    sync.Once
	shared  *pgxpool.Pool
	openErr error
)

// Pool returns a pool on a migrated database shared by every test in the binary.
// TEST_DATABASE_URL selects an existing database; otherwise a postgres container is
// started. The test is skipped in -short mode or when neither is available.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres repository tests skipped in short mode")
	}
	if os.Getenv("TEST_DATABASE_URL") == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		shared, openErr = open(ctx)
	})
	if openErr != nil {
		t.Skipf("postgres unavailable: %v", openErr)
	}
	return shared
}

// Guild returns a guild id no other test uses. Every table is keyed by guild, so tests
// sharing the database stay isolated.
func Guild(t *testing.T) string {
	t.Helper()
	return "guild-" + uuid.NewString()
}

func open(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		c, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("challenges"),
			postgres.WithUsername("challenges"),
			postgres.WithPassword("challenges"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		if dsn, err = c.ConnectionString(ctx, "sslmode=disable"); err != nil {
			_ = c.Terminate(context.Background())
			return nil, fmt.Errorf("postgres connection string: %w", err)
		}
	}
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{DSN: dsn, MaxConns: 16}, nil)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// InsertPoll writes a bare closed poll row so events can reference it.
func InsertPoll(t *testing.T, pool *pgxpool.Pool, guildID, category string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO polls (id, guild_id, category, options, active) VALUES ($1, $2, $3, '[]'::jsonb, FALSE)`,
		id, guildID, category)
	if err != nil {
		t.Fatalf("insert poll: %v", err)
	}
	return id
}

// InsertEvent writes a bare event row, with its poll, so submissions can reference it.
func InsertEvent(t *testing.T, pool *pgxpool.Pool, guildID, category string, startsAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	pollID := InsertPoll(t, pool, guildID, category)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO challenge_events (id, guild_id, category, poll_id, template, keyword, starts_at, ends_at, thresholds)
		VALUES ($1, $2, $3, $4, '{}'::jsonb, 'kw', $5, $6, '{}'::jsonb)`,
		id, guildID, category, pollID, startsAt, startsAt.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return id
}
