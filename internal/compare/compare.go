// Package compare implements the cross-party comparison surface behind
// POST /compare: running the RAG pipeline once per named party under a
// shared topic, then assembling a matrix keyed by party slug, cached as a
// unit under the comparison cache key.
package compare

import (
	"context"
	"encoding/json"
	"time"

	"planrag/internal/cache"
	"planrag/internal/domain"
	"planrag/internal/ragpipeline"
	"planrag/internal/rerr"
)

// Row is one party's answer within a comparison matrix.
type Row struct {
	PartySlug  string          `json:"partySlug"`
	Answer     string          `json:"answer"`
	Sources    []domain.Source `json:"sources"`
	Confidence float64         `json:"confidence"`
}

// Result is the assembled comparison matrix.
type Result struct {
	Topic  string `json:"topic"`
	Rows   []Row  `json:"rows"`
	Cached bool   `json:"cached"`
}

// Service composes ragpipeline.Pipeline.Query per party and a dedicated
// comparison cache, following the same cache-then-compute shape C14 uses
// for single-party chat but keyed on (topic, party set) instead of
// (question, retrieval params).
type Service struct {
	RAG   *ragpipeline.Pipeline
	Cache cache.Store
	// DefaultTTL applies when Compare's ttlOverride is nil. A non-positive
	// ttlOverride (or a non-positive DefaultTTL) stores the entry with no
	// expiration, which is how admin-precomputed comparisons never expire.
	DefaultTTL time.Duration
}

// Compare runs the topic against each party in partySlugs, composing each
// row from an independent ragpipeline.Query call with an explicit party
// filter. One party's retrieval failure does not abort the others; its row
// carries the canonical no-info answer instead.
func (s *Service) Compare(ctx context.Context, topic string, partySlugs []string, ttlOverride *time.Duration) (Result, error) {
	if len(topic) == 0 {
		return Result{}, rerr.New(rerr.KindInvalidInput, "topic must not be empty")
	}
	if len(partySlugs) == 0 {
		return Result{}, rerr.New(rerr.KindInvalidInput, "at least one party is required")
	}

	key := cache.DeriveComparisonKey(topic, partySlugs)
	if entry, hit, err := s.Cache.Get(ctx, key.TopicHash, key.PartiesHash); err == nil && hit && !entry.Expired(time.Now()) {
		rows, ok := decodeRows(entry)
		if ok {
			return Result{Topic: topic, Rows: rows, Cached: true}, nil
		}
	}

	rows := make([]Row, 0, len(partySlugs))
	for _, slug := range partySlugs {
		resp, err := s.RAG.Query(ctx, topic, ragpipeline.Options{PartyFilter: slug, TopK: -1})
		if err != nil {
			rows = append(rows, Row{PartySlug: slug, Answer: ragpipeline.CanonicalNoInfoAnswer})
			continue
		}
		rows = append(rows, Row{PartySlug: slug, Answer: resp.Answer, Sources: resp.Sources, Confidence: resp.Confidence})
	}

	result := Result{Topic: topic, Rows: rows, Cached: false}

	ttl := ttlOverride
	if ttl == nil {
		d := s.DefaultTTL
		ttl = &d
	}
	if *ttl <= 0 {
		ttl = nil
	}
	_ = s.Cache.Put(ctx, key.TopicHash, key.PartiesHash, encodeRows(topic, rows), ttl)

	return result, nil
}

// encodeRows/decodeRows serialize the row matrix into CacheEntry's Answer
// field as JSON; the comparison cache reuses the chat cache's storage
// shape (same Store interface, a second instance) rather than needing its
// own schema, since CacheEntry's Answer is free-form text to the store.
func encodeRows(topic string, rows []Row) domain.CacheEntry {
	payload, _ := json.Marshal(rows)
	return domain.CacheEntry{Question: topic, Answer: string(payload), ComputedAt: time.Now()}
}

func decodeRows(entry domain.CacheEntry) ([]Row, bool) {
	var rows []Row
	if err := json.Unmarshal([]byte(entry.Answer), &rows); err != nil {
		return nil, false
	}
	return rows, len(rows) > 0
}
