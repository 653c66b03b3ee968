package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// redisStore is grounded on the teacher's internal/skills/redis_cache.go:
// go-redis/v9 Get/Set with TTL and a Scan-based pattern Invalidate, adapted
// from a single skills cache to the chat/comparison CacheEntry shape. Redis
// expires keys itself, so Cleanup here is a best-effort SCAN for
// bookkeeping rather than the primary expiry mechanism.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a Store backed by Redis, pinging once at construction.
func NewRedis(ctx context.Context, addr, prefix string) (Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "connecting to redis at %s", addr)
	}
	if prefix == "" {
		prefix = "planrag:cache:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

type redisPayload struct {
	Entry     domain.CacheEntry `json:"entry"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

func (r *redisStore) key(questionHash, paramsHash string) string {
	return r.prefix + questionHash + ":" + paramsHash
}

func (r *redisStore) Get(ctx context.Context, questionHash, paramsHash string) (domain.CacheEntry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(questionHash, paramsHash)).Bytes()
	if err == redis.Nil {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, rerr.Wrap(err, rerr.ErrCacheError, "redis get")
	}
	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.CacheEntry{}, false, rerr.Wrap(err, rerr.ErrCacheError, "decoding cached payload")
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
		_ = r.client.Del(ctx, r.key(questionHash, paramsHash)).Err()
		return domain.CacheEntry{}, false, nil
	}
	return p.Entry, true, nil
}

func (r *redisStore) Put(ctx context.Context, questionHash, paramsHash string, entry domain.CacheEntry, ttl *time.Duration) error {
	var expiresAt *time.Time
	var redisTTL time.Duration
	if ttl != nil {
		t := time.Now().Add(*ttl)
		expiresAt = &t
		redisTTL = *ttl
	}
	payload, err := json.Marshal(redisPayload{Entry: entry, ExpiresAt: expiresAt})
	if err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "encoding payload")
	}
	if err := r.client.Set(ctx, r.key(questionHash, paramsHash), payload, redisTTL).Err(); err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "redis set")
	}
	return nil
}

func (r *redisStore) Invalidate(ctx context.Context, questionHash, paramsHash string) error {
	if err := r.client.Del(ctx, r.key(questionHash, paramsHash)).Err(); err != nil {
		return rerr.Wrap(err, rerr.ErrCacheError, "redis del")
	}
	return nil
}

func (r *redisStore) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var p redisPayload
		if json.Unmarshal(raw, &p) == nil && p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
			if r.client.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, rerr.Wrap(err, rerr.ErrCacheError, "redis scan")
	}
	return removed, nil
}

func (r *redisStore) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	now := time.Now()
	for iter.Next(ctx) {
		s.Total++
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var p redisPayload
		if json.Unmarshal(raw, &p) != nil {
			continue
		}
		if p.ExpiresAt == nil {
			s.NeverExpires++
		} else if p.ExpiresAt.Before(now) {
			s.Expired++
		}
	}
	if err := iter.Err(); err != nil {
		return s, rerr.Wrap(err, rerr.ErrCacheError, "redis scan")
	}
	return s, nil
}
