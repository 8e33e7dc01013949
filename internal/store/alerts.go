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

// AlertRepository persists durable alerts. Rows are append-only;
// acknowledgment is the only permitted mutation, and only false -> true.
type AlertRepository struct {
	repoBase
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "alerts").Logger(),
	}}
}

// InsertAlerts writes a batch of alerts in one statement.
func (r *AlertRepository) InsertAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		placeholders := make([]string, 0, len(alerts))
		args := make([]interface{}, 0, len(alerts)*9)

		for i, a := range alerts {
			base := i * 9
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
			args = append(args, a.ID, string(a.Type), a.IndicatorID, a.Timestamp,
				a.RawValue, a.Z, a.Threshold, a.Message, string(a.Severity))
		}

		query := fmt.Sprintf(`
			INSERT INTO alerts (id, alert_type, indicator_id, ts, raw_value, z, threshold, message, severity)
			VALUES %s`,
			strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert %d alerts: %w", len(alerts), err)
		}
		return nil
	})
}

// RecentCount counts alerts of one type for one indicator within the last N
// days. Used for the bound-suggestion escalation.
func (r *AlertRepository) RecentCount(ctx context.Context, alertType domain.AlertType, indicatorID string, days int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM alerts
		WHERE alert_type = $1 AND indicator_id = $2
		  AND ts >= NOW() - ($3::int * INTERVAL '1 day')`

	var count int
	if err := r.db.QueryRowxContext(ctx, query, string(alertType), indicatorID, days).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent %s alerts for %s: %w", alertType, indicatorID, err)
	}
	return count, nil
}

// Unacknowledged returns unacknowledged alerts from the last N days,
// newest first.
func (r *AlertRepository) Unacknowledged(ctx context.Context, days int) ([]domain.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, alert_type, indicator_id, ts, raw_value, z, threshold, message, severity, acknowledged
		FROM alerts
		WHERE acknowledged = FALSE AND ts >= NOW() - ($1::int * INTERVAL '1 day')
		ORDER BY ts DESC`

	rows, err := r.db.QueryxContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query unacknowledged alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Acknowledge marks one alert acknowledged. The predicate guarantees the
// only transition is false -> true.
func (r *AlertRepository) Acknowledge(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = TRUE WHERE id = $1 AND acknowledged = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read acknowledge result for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s not found or already acknowledged", id)
	}
	return nil
}

func scanAlerts(rows *sqlx.Rows) ([]domain.Alert, error) {
	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var alertType, severity string
		if err := rows.Scan(&a.ID, &alertType, &a.IndicatorID, &a.Timestamp,
			&a.RawValue, &a.Z, &a.Threshold, &a.Message, &severity, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Type = domain.AlertType(alertType)
		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}
