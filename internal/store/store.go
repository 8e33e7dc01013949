// Package store provides durable persistence for the indicator pipeline:
// raw samples, rolling stats, z-scores, composite rows, alerts, daily history,
// discovered regimes and cached derived indicators. All repositories use
// parameterized queries exclusively and batch multi-row writes.
package store

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/database"
)

// Store bundles all repositories behind a single constructor.
type Store struct {
	Samples   *SampleRepository
	History   *HistoryRepository
	Stats     *StatsRepository
	ZScores   *ZScoreRepository
	Composite *CompositeRepository
	Alerts    *AlertRepository
	Regimes   *RegimeRepository
	Derived   *DerivedRepository
}

// New creates all repositories sharing the database's pooled connection.
func New(db *database.DB, log zerolog.Logger) *Store {
	conn := db.Conn()
	timeout := db.QueryTimeout()

	return &Store{
		Samples:   NewSampleRepository(conn, timeout, log),
		History:   NewHistoryRepository(conn, timeout, log),
		Stats:     NewStatsRepository(conn, timeout, log),
		ZScores:   NewZScoreRepository(conn, timeout, log),
		Composite: NewCompositeRepository(conn, timeout, log),
		Alerts:    NewAlertRepository(conn, timeout, log),
		Regimes:   NewRegimeRepository(conn, timeout, log),
		Derived:   NewDerivedRepository(conn, timeout, log),
	}
}

// repoBase holds the shared repository dependencies.
type repoBase struct {
	db      *sqlx.DB
	timeout time.Duration
	log     zerolog.Logger
}
