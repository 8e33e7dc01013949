package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
)

// ZScoreRepository persists computed z-score rows. Rows are append-only per
// timestamp; a collision on (indicator_id, ts) is an upsert.
type ZScoreRepository struct {
	repoBase
}

// NewZScoreRepository creates a new z-score repository.
func NewZScoreRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *ZScoreRepository {
	return &ZScoreRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "z_scores").Logger(),
	}}
}

// InsertZScores writes a batch of z-score rows in one statement.
func (r *ZScoreRepository) InsertZScores(ctx context.Context, zs []domain.ZScoreRow) error {
	if len(zs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		placeholders := make([]string, 0, len(zs))
		args := make([]interface{}, 0, len(zs)*6)

		for i, z := range zs {
			base := i * 6
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
			args = append(args, z.IndicatorID, z.Timestamp, z.RawValue, z.Mean, z.StdDev, z.Z)
		}

		query := fmt.Sprintf(`
			INSERT INTO z_scores (indicator_id, ts, raw_value, mean, std_dev, z)
			VALUES %s
			ON CONFLICT (indicator_id, ts) DO UPDATE SET
				raw_value = EXCLUDED.raw_value,
				mean = EXCLUDED.mean,
				std_dev = EXCLUDED.std_dev,
				z = EXCLUDED.z`,
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert %d z-score rows: %w", len(zs), err)
		}
		return nil
	})
}

// LatestPerDay returns one z-score row per UTC day for one indicator over the
// last N days (the newest row of each day), ordered by day ascending.
// The regime detector uses this as its per-date z feature.
func (r *ZScoreRepository) LatestPerDay(ctx context.Context, indicatorID string, days int) ([]domain.ZScoreRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (date_trunc('day', ts))
		       indicator_id, ts, raw_value, mean, std_dev, z
		FROM z_scores
		WHERE indicator_id = $1 AND ts >= NOW() - ($2::int * INTERVAL '1 day')
		ORDER BY date_trunc('day', ts), ts DESC`

	rows, err := r.db.QueryxContext(ctx, query, indicatorID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily z-scores for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var result []domain.ZScoreRow
	for rows.Next() {
		var z domain.ZScoreRow
		if err := rows.Scan(&z.IndicatorID, &z.Timestamp, &z.RawValue, &z.Mean, &z.StdDev, &z.Z); err != nil {
			return nil, fmt.Errorf("failed to scan z-score row: %w", err)
		}
		result = append(result, z)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating z-score rows: %w", err)
	}
	return result, nil
}
