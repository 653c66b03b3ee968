// Package cache implements C4, the two-tier response cache: a
// content-addressed KV store with TTL for expensive LLM outputs, keyed by
// the normalized-question derivations in key.go.
package cache

import (
	"context"
	"time"

	"planrag/internal/domain"
)

// Stats summarizes the cache population for diagnostics.
type Stats struct {
	Total        int
	Expired      int
	NeverExpires int
}

// Store is the C4 contract, shared by the chat cache and the comparison
// cache (two independent instances of the same interface).
type Store interface {
	// Get returns the entry for keys, or ok=false on miss. An entry whose
	// ExpiresAt has lapsed is deleted and reported as a miss (lazy expiry).
	Get(ctx context.Context, questionHash, paramsHash string) (entry domain.CacheEntry, ok bool, err error)
	// Put upserts entry under keys. ttl == nil means no expiration.
	Put(ctx context.Context, questionHash, paramsHash string, entry domain.CacheEntry, ttl *time.Duration) error
	// Invalidate removes the entry for keys, if present.
	Invalidate(ctx context.Context, questionHash, paramsHash string) error
	// Cleanup bulk-deletes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
	// Stats reports population counts for the diagnostic endpoint.
	Stats(ctx context.Context) (Stats, error)
}

// Errors from a Store are never surfaced as request failures per §7: cache
// is a performance optimization, not a correctness dependency. Callers
// should treat a non-nil error from Get as a miss and from Put as a no-op,
// logging it rather than failing the request.
