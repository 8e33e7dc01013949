package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache kinds for derived indicator payloads.
const (
	DerivedKindTechnical = "technical"
)

// TTL applied to technical-indicator payloads. The refresh runs twice daily;
// a 14h TTL keeps the multiplier fresh across one missed run.
const TTLTechnical = 14 * time.Hour

// DerivedRepository caches derived indicator payloads (e.g., the technical
// signal multiplier) as msgpack blobs with expiration timestamps.
type DerivedRepository struct {
	repoBase
}

// NewDerivedRepository creates a new derived-indicator cache repository.
func NewDerivedRepository(db *sqlx.DB, timeout time.Duration, log zerolog.Logger) *DerivedRepository {
	return &DerivedRepository{repoBase{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("repository", "derived_cache").Logger(),
	}}
}

// Store saves a payload with expiration = now + ttl.
func (r *DerivedRepository) Store(ctx context.Context, kind, key string, payload interface{}, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	blob, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal derived payload %s/%s: %w", kind, key, err)
	}

	query := `
		INSERT INTO derived_cache (kind, cache_key, payload, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at`

	if _, err := r.db.ExecContext(ctx, query, kind, key, blob, time.Now().UTC().Add(ttl)); err != nil {
		return fmt.Errorf("failed to store derived payload %s/%s: %w", kind, key, err)
	}
	return nil
}

// GetIfFresh loads a payload into out if present and not expired.
// Returns false when there is no fresh entry.
func (r *DerivedRepository) GetIfFresh(ctx context.Context, kind, key string, out interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var blob []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT payload FROM derived_cache WHERE kind = $1 AND cache_key = $2 AND expires_at > NOW()`,
		kind, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load derived payload %s/%s: %w", kind, key, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal derived payload %s/%s: %w", kind, key, err)
	}
	return true, nil
}
