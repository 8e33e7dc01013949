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

// HistoryRepository persists one canonical value per indicator per UTC day.
type HistoryRepository struct {
	repoBase
}

// NewHistoryRepository creates a new daily history repository.
func NewHistoryRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "history_daily").Logger(),
	}}
}

// UpsertDaily writes a batch of daily values; the newest write for a
// (indicator, date) pair wins.
func (r *HistoryRepository) UpsertDaily(ctx context.Context, rows []domain.HistoryDaily) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		placeholders := make([]string, 0, len(rows))
		args := make([]interface{}, 0, len(rows)*4)

		for i, h := range rows {
			base := i * 4
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4))
			args = append(args, h.IndicatorID, h.Date, h.Value, h.Source)
		}

		query := fmt.Sprintf(`
			INSERT INTO history_daily (indicator_id, date, value, source)
			VALUES %s
			ON CONFLICT (indicator_id, date) DO UPDATE SET
				value = EXCLUDED.value,
				source = EXCLUDED.source`,
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert %d daily history rows: %w", len(rows), err)
		}
		return nil
	})
}

// FetchDaily returns up to days of daily values for one indicator, ordered by
// date ascending. The current date is excluded so the value being scored
// never enters its own baseline.
func (r *HistoryRepository) FetchDaily(ctx context.Context, indicatorID string, days int) ([]domain.HistoryDaily, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT indicator_id, to_char(date, 'YYYY-MM-DD'), value, source
		FROM history_daily
		WHERE indicator_id = $1 AND date >= CURRENT_DATE - $2::int AND date < CURRENT_DATE
		ORDER BY date ASC`

	rows, err := r.db.QueryxContext(ctx, query, indicatorID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily history for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var result []domain.HistoryDaily
	for rows.Next() {
		var h domain.HistoryDaily
		if err := rows.Scan(&h.IndicatorID, &h.Date, &h.Value, &h.Source); err != nil {
			return nil, fmt.Errorf("failed to scan daily history row: %w", err)
		}
		result = append(result, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily history rows: %w", err)
	}
	return result, nil
}

// ValueDaysAgo returns the indicator's canonical value from the most recent
// day at or before N days ago. Returns nil when no such day exists.
func (r *HistoryRepository) ValueDaysAgo(ctx context.Context, indicatorID string, daysAgo int) (*float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT value
		FROM history_daily
		WHERE indicator_id = $1 AND date <= CURRENT_DATE - $2::int
		ORDER BY date DESC
		LIMIT 1`

	var value float64
	err := r.db.QueryRowxContext(ctx, query, indicatorID, daysAgo).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query value %d days ago for %s: %w", daysAgo, indicatorID, err)
	}
	return &value, nil
}
