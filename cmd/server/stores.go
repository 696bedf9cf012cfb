package main

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/challenges/internal/catalog"
	"github.com/aura-community/challenges/internal/draws"
	"github.com/aura-community/challenges/internal/events"
	"github.com/aura-community/challenges/internal/guilds"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/notify"
	"github.com/aura-community/challenges/internal/polls"
	"github.com/aura-community/challenges/internal/scheduler"
	"github.com/aura-community/challenges/internal/stats"
	"github.com/aura-community/challenges/internal/submissions"
)

// statsStore is the member statistics surface shared by polls, draws and the stats handler.
type statsStore interface {
	polls.VoteCounter
	draws.PrizeCounter
	stats.Reader
}

// submissionStore is what reviews, draws and the archiver need from submissions.
type submissionStore interface {
	submissions.Store
	draws.ApprovedLister
}

// stores is every persistence facade the server wires, backed by Postgres or memory.
type stores struct {
	catalog     catalog.Store
	polls       polls.Store
	events      events.Store
	submissions submissionStore
	draws       draws.Store
	triggers    scheduler.StateStore
	stats       statsStore
	settings    notify.SettingsReader
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		catalog:     catalog.NewRepository(pool),
		polls:       polls.NewRepository(pool),
		events:      events.NewRepository(pool),
		submissions: submissions.NewRepository(pool),
		draws:       draws.NewRepository(pool),
		triggers:    scheduler.NewRepository(pool),
		stats:       stats.NewRepository(pool),
		settings:    guilds.NewRepository(pool),
	}
}

func memoryStores(m *memstore.Store) stores {
	return stores{
		catalog:     m,
		polls:       m,
		events:      m,
		submissions: m,
		draws:       m,
		triggers:    m,
		stats:       m,
		settings:    m,
	}
}
