package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
)

// SampleRepository persists raw indicator samples.
// Duplicate (indicator_id, source_ts) pairs are upserts: newer wins.
type SampleRepository struct {
	repoBase
}

// NewSampleRepository creates a new sample repository.
func NewSampleRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *SampleRepository {
	return &SampleRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "samples").Logger(),
	}}
}

// UpsertSamples writes a batch of samples in one statement inside one
// transaction. An empty batch is a no-op.
func (r *SampleRepository) UpsertSamples(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		placeholders := make([]string, 0, len(samples))
		args := make([]interface{}, 0, len(samples)*6)

		for i, s := range samples {
			overrides, err := json.Marshal(s.Overrides)
			if err != nil {
				return fmt.Errorf("failed to marshal overrides for %s: %w", s.IndicatorID, err)
			}
			base := i * 6
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
			args = append(args, s.IndicatorID, s.Value, s.Unit, s.SourceTimestamp, s.IngestedAt, overrides)
		}

		query := fmt.Sprintf(`
			INSERT INTO samples (indicator_id, value, unit, source_ts, ingested_at, overrides)
			VALUES %s
			ON CONFLICT (indicator_id, source_ts) DO UPDATE SET
				value = EXCLUDED.value,
				unit = EXCLUDED.unit,
				ingested_at = EXCLUDED.ingested_at,
				overrides = EXCLUDED.overrides`,
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert %d samples: %w", len(samples), err)
		}
		return nil
	})
}

// LatestPerIndicator returns the newest sample for each indicator.
func (r *SampleRepository) LatestPerIndicator(ctx context.Context) (map[string]domain.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (indicator_id)
		       indicator_id, value, unit, source_ts, ingested_at, overrides
		FROM samples
		ORDER BY indicator_id, source_ts DESC`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest samples: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]domain.Sample)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		latest[sample.IndicatorID] = sample
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample rows: %w", err)
	}
	return latest, nil
}

// Historical returns samples for one indicator since the given time,
// ordered by source timestamp ascending.
func (r *SampleRepository) Historical(ctx context.Context, indicatorID string, since time.Time) ([]domain.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT indicator_id, value, unit, source_ts, ingested_at, overrides
		FROM samples
		WHERE indicator_id = $1 AND source_ts >= $2
		ORDER BY source_ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, indicatorID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical samples for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample rows: %w", err)
	}
	return samples, nil
}

func scanSample(rows *sqlx.Rows) (domain.Sample, error) {
	var s domain.Sample
	var overridesJSON []byte

	if err := rows.Scan(&s.IndicatorID, &s.Value, &s.Unit, &s.SourceTimestamp, &s.IngestedAt, &overridesJSON); err != nil {
		return domain.Sample{}, fmt.Errorf("failed to scan sample: %w", err)
	}

	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &s.Overrides); err != nil {
			return domain.Sample{}, fmt.Errorf("failed to unmarshal overrides: %w", err)
		}
	}

	return s, nil
}
