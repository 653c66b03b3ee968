package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// postgresStore persists cache entries as a JSONB payload, grounded on the
// teacher's habit (postgres_vector.go, factory.go) of provisioning its own
// table in the constructor rather than requiring external migrations.
type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres ensures the cache_entries table exists and returns a Store.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cache_entries (
  question_hash TEXT NOT NULL,
  params_hash TEXT NOT NULL,
  payload JSONB NOT NULL,
  expires_at TIMESTAMPTZ,
  PRIMARY KEY (question_hash, params_hash)
);
`)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "creating cache_entries table")
	}
	return &postgresStore{pool: pool}, nil
}

func (p *postgresStore) Get(ctx context.Context, questionHash, paramsHash string) (domain.CacheEntry, bool, error) {
	var payload []byte
	var expiresAt *time.Time
	err := p.pool.QueryRow(ctx, `SELECT payload, expires_at FROM cache_entries WHERE question_hash=$1 AND params_hash=$2`,
		questionHash, paramsHash).Scan(&payload, &expiresAt)
	if err == pgx.ErrNoRows {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, rerr.Wrap(err, rerr.ErrCacheError, "querying cache entry")
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		_, _ = p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE question_hash=$1 AND params_hash=$2`, questionHash, paramsHash)
		return domain.CacheEntry{}, false, nil
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return domain.CacheEntry{}, false, rerr.Wrap(err, rerr.ErrCacheError, "decoding cache entry")
	}
	return entry, true, nil
}

func (p *postgresStore) Put(ctx context.Context, questionHash, paramsHash string, entry domain.CacheEntry, ttl *time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "encoding cache entry")
	}
	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().Add(*ttl)
		expiresAt = &t
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO cache_entries (question_hash, params_hash, payload, expires_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (question_hash, params_hash) DO UPDATE SET payload=EXCLUDED.payload, expires_at=EXCLUDED.expires_at
`, questionHash, paramsHash, payload, expiresAt)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "upserting cache entry")
	}
	return nil
}

func (p *postgresStore) Invalidate(ctx context.Context, questionHash, paramsHash string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE question_hash=$1 AND params_hash=$2`, questionHash, paramsHash)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "deleting cache entry")
	}
	return nil
}

func (p *postgresStore) Cleanup(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, rerr.Wrap(err, rerr.ErrCacheError, "cleaning expired cache entries")
	}
	return int(tag.RowsAffected()), nil
}

func (p *postgresStore) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at < now()),
       count(*) FILTER (WHERE expires_at IS NULL)
FROM cache_entries`).Scan(&s.Total, &s.Expired, &s.NeverExpires)
	if err != nil {
		return s, rerr.Wrap(err, rerr.ErrCacheError, "computing cache stats")
	}
	return s, nil
}
