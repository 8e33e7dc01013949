package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
)

// CompositeRepository persists PXI composite rows and their per-metric
// contributions. calculated_at is unique; a collision is an upsert.
type CompositeRepository struct {
	repoBase
}

// NewCompositeRepository creates a new composite repository.
func NewCompositeRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *CompositeRepository {
	return &CompositeRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "composite").Logger(),
	}}
}

// InsertComposite writes the composite row and its contributions in a single
// transaction.
func (r *CompositeRepository) InsertComposite(ctx context.Context, row domain.CompositeRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO composite_rows (calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (calculated_at) DO UPDATE SET
				raw_pxi = EXCLUDED.raw_pxi,
				pxi = EXCLUDED.pxi,
				regime = EXCLUDED.regime,
				total_weight = EXCLUDED.total_weight,
				pamp_count = EXCLUDED.pamp_count,
				stress_count = EXCLUDED.stress_count`

		if _, err := tx.ExecContext(ctx, query,
			row.CalculatedAt, row.RawPXI, row.PXI, string(row.Regime),
			row.TotalWeight, row.PampCount, row.StressCount); err != nil {
			return fmt.Errorf("failed to insert composite row: %w", err)
		}

		if len(row.Metrics) == 0 {
			return nil
		}

		placeholders := make([]string, 0, len(row.Metrics))
		args := make([]interface{}, 0, len(row.Metrics)*6)
		for i, m := range row.Metrics {
			base := i * 6
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
			args = append(args, row.CalculatedAt, m.IndicatorID, m.Value, m.Z, m.NormalizedWeight, m.Contribution)
		}

		contribQuery := fmt.Sprintf(`
			INSERT INTO metric_contributions (calculated_at, indicator_id, value, z, normalized_weight, contribution)
			VALUES %s
			ON CONFLICT (calculated_at, indicator_id) DO UPDATE SET
				value = EXCLUDED.value,
				z = EXCLUDED.z,
				normalized_weight = EXCLUDED.normalized_weight,
				contribution = EXCLUDED.contribution`,
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, contribQuery, args...); err != nil {
			return fmt.Errorf("failed to insert %d metric contributions: %w", len(row.Metrics), err)
		}
		return nil
	})
}

// Latest returns the most recent composite row with its contributions,
// or nil when none exists yet.
func (r *CompositeRepository) Latest(ctx context.Context) (*domain.CompositeRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count
		FROM composite_rows
		ORDER BY calculated_at DESC
		LIMIT 1`

	var row domain.CompositeRow
	var regime string
	err := r.db.QueryRowxContext(ctx, query).Scan(
		&row.CalculatedAt, &row.RawPXI, &row.PXI, &regime,
		&row.TotalWeight, &row.PampCount, &row.StressCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest composite: %w", err)
	}
	row.Regime = domain.ThresholdRegime(regime)

	metrics, err := r.contributionsAt(ctx, row.CalculatedAt)
	if err != nil {
		return nil, err
	}
	row.Metrics = metrics

	return &row, nil
}

// PxiHistory returns the composite series for the last N days, ordered by
// calculation time ascending.
func (r *CompositeRepository) PxiHistory(ctx context.Context, days int) ([]domain.CompositeRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count
		FROM composite_rows
		WHERE calculated_at >= NOW() - ($1::int * INTERVAL '1 day')
		ORDER BY calculated_at ASC`

	rows, err := r.db.QueryxContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query pxi history: %w", err)
	}
	defer rows.Close()

	var result []domain.CompositeRow
	for rows.Next() {
		var row domain.CompositeRow
		var regime string
		if err := rows.Scan(&row.CalculatedAt, &row.RawPXI, &row.PXI, &regime,
			&row.TotalWeight, &row.PampCount, &row.StressCount); err != nil {
			return nil, fmt.Errorf("failed to scan composite row: %w", err)
		}
		row.Regime = domain.ThresholdRegime(regime)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composite rows: %w", err)
	}
	return result, nil
}

// contributionsAt loads the metric contributions of one composite row.
func (r *CompositeRepository) contributionsAt(ctx context.Context, calculatedAt time.Time) ([]domain.MetricContribution, error) {
	query := `
		SELECT indicator_id, value, z, normalized_weight, contribution
		FROM metric_contributions
		WHERE calculated_at = $1
		ORDER BY indicator_id ASC`

	rows, err := r.db.QueryxContext(ctx, query, calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric contributions: %w", err)
	}
	defer rows.Close()

	var metrics []domain.MetricContribution
	for rows.Next() {
		var m domain.MetricContribution
		if err := rows.Scan(&m.IndicatorID, &m.Value, &m.Z, &m.NormalizedWeight, &m.Contribution); err != nil {
			return nil, fmt.Errorf("failed to scan metric contribution: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution rows: %w", err)
	}
	return metrics, nil
}
