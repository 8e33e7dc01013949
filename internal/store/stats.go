package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

// StatsRepository persists rolling statistical baselines per indicator.
type StatsRepository struct {
	repoBase
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *StatsRepository {
	return &StatsRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "indicator_stats").Logger(),
	}}
}

// UpsertStats writes or replaces one stats snapshot.
func (r *StatsRepository) UpsertStats(ctx context.Context, snap domain.StatsSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO indicator_stats (indicator_id, window_days, mean, std_dev, n, min_value, max_value, health, as_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (indicator_id, window_days) DO UPDATE SET
			mean = EXCLUDED.mean,
			std_dev = EXCLUDED.std_dev,
			n = EXCLUDED.n,
			min_value = EXCLUDED.min_value,
			max_value = EXCLUDED.max_value,
			health = EXCLUDED.health,
			as_of = EXCLUDED.as_of`

	_, err := r.db.ExecContext(ctx, query,
		snap.IndicatorID, snap.WindowDays, snap.Mean, snap.StdDev, snap.N, snap.Min, snap.Max,
		string(snap.Health), snap.AsOf)
	if err != nil {
		return fmt.Errorf("failed to upsert stats for %s: %w", snap.IndicatorID, err)
	}
	return nil
}

// LatestStats returns the most recent stats snapshot per indicator.
func (r *StatsRepository) LatestStats(ctx context.Context) (map[string]domain.StatsSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (indicator_id)
		       indicator_id, window_days, mean, std_dev, n, min_value, max_value, health, as_of
		FROM indicator_stats
		ORDER BY indicator_id, as_of DESC`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]domain.StatsSnapshot)
	for rows.Next() {
		var snap domain.StatsSnapshot
		var health string
		if err := rows.Scan(&snap.IndicatorID, &snap.WindowDays, &snap.Mean, &snap.StdDev,
			&snap.N, &snap.Min, &snap.Max, &health, &snap.AsOf); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		snap.Health = domain.HealthStatus(health)
		stats[snap.IndicatorID] = snap
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}
	return stats, nil
}
