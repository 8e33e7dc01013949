package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

// RegimeRepository persists discovered regime labels, one per UTC day.
type RegimeRepository struct {
	repoBase
}

// NewRegimeRepository creates a new regime repository.
func NewRegimeRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *RegimeRepository {
	return &RegimeRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "regimes").Logger(),
	}}
}

// UpsertRegime writes one regime row; a rerun for the same date replaces it.
func (r *RegimeRepository) UpsertRegime(ctx context.Context, row domain.RegimeRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	features, err := json.Marshal(row.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal regime features: %w", err)
	}
	centroid, err := json.Marshal(row.Centroid)
	if err != nil {
		return fmt.Errorf("failed to marshal regime centroid: %w", err)
	}
	probabilities, err := json.Marshal(row.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal regime probabilities: %w", err)
	}

	query := `
		INSERT INTO regimes (date, regime, cluster_id, features, centroid, probabilities)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE SET
			regime = EXCLUDED.regime,
			cluster_id = EXCLUDED.cluster_id,
			features = EXCLUDED.features,
			centroid = EXCLUDED.centroid,
			probabilities = EXCLUDED.probabilities`

	if _, err := r.db.ExecContext(ctx, query,
		row.Date, string(row.Regime), row.ClusterID, features, centroid, probabilities); err != nil {
		return fmt.Errorf("failed to upsert regime for %s: %w", row.Date, err)
	}
	return nil
}

// Latest returns the most recent regime row, or nil when none exists.
func (r *RegimeRepository) Latest(ctx context.Context) (*domain.RegimeRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), regime, cluster_id, features, centroid, probabilities
		FROM regimes
		ORDER BY date DESC
		LIMIT 1`

	row, err := scanRegimeRow(r.db.QueryRowxContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest regime: %w", err)
	}
	return row, nil
}

// History returns regime rows for the last N days, ordered by date ascending.
func (r *RegimeRepository) History(ctx context.Context, days int) ([]domain.RegimeRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), regime, cluster_id, features, centroid, probabilities
		FROM regimes
		WHERE date >= CURRENT_DATE - $1::int
		ORDER BY date ASC`

	rows, err := r.db.QueryxContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime history: %w", err)
	}
	defer rows.Close()

	var result []domain.RegimeRow
	for rows.Next() {
		var row domain.RegimeRow
		var regime string
		var features, centroid, probabilities []byte
		if err := rows.Scan(&row.Date, &regime, &row.ClusterID, &features, &centroid, &probabilities); err != nil {
			return nil, fmt.Errorf("failed to scan regime row: %w", err)
		}
		row.Regime = domain.DiscoveredRegime(regime)
		if err := unmarshalRegimeVectors(&row, features, centroid, probabilities); err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regime rows: %w", err)
	}
	return result, nil
}

func scanRegimeRow(row *sqlx.Row) (*domain.RegimeRow, error) {
	var out domain.RegimeRow
	var regime string
	var features, centroid, probabilities []byte

	if err := row.Scan(&out.Date, &regime, &out.ClusterID, &features, &centroid, &probabilities); err != nil {
		return nil, err
	}
	out.Regime = domain.DiscoveredRegime(regime)
	if err := unmarshalRegimeVectors(&out, features, centroid, probabilities); err != nil {
		return nil, err
	}
	return &out, nil
}

func unmarshalRegimeVectors(row *domain.RegimeRow, features, centroid, probabilities []byte) error {
	if err := json.Unmarshal(features, &row.Features); err != nil {
		return fmt.Errorf("failed to unmarshal regime features: %w", err)
	}
	if err := json.Unmarshal(centroid, &row.Centroid); err != nil {
		return fmt.Errorf("failed to unmarshal regime centroid: %w", err)
	}
	if err := json.Unmarshal(probabilities, &row.Probabilities); err != nil {
		return fmt.Errorf("failed to unmarshal regime probabilities: %w", err)
	}
	return nil
}
