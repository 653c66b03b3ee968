package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// payloadOriginalIDField is the payload key holding the chunk's original
// string ID, since the point ID itself is a UUID derived from it.
const payloadOriginalIDField = "_original_id"

// qdrantStore is a Store backed by Qdrant. Grounded on the teacher's
// qdrant_vector.go: same DSN parsing and deterministic-UUID point-ID mapping
// (Qdrant only accepts UUID/int point IDs, so the chunk's natural string ID
// is hashed into a UUID and the original kept in the payload), generalized
// to carry the full Chunk payload instead of a flat metadata map.
type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrant parses dsn (host[:port], scheme https enables TLS, optional
// ?api_key=... query param) and ensures the collection exists.
func NewQdrant(dsn, collection string, dimension int, metric string) (Store, error) {
	if collection == "" {
		return nil, rerr.New(rerr.KindConfigError, "qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrConfigError, "parsing qdrant DSN")
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrConfigError, "invalid qdrant port")
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "creating qdrant client")
	}
	s := &qdrantStore{client: client, collection: collection, dimension: dimension, metric: strings.ToLower(strings.TrimSpace(metric))}
	if err := s.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrProviderUnavailable, "checking qdrant collection")
	}
	if exists {
		return nil
	}
	distance := qdrant.Distance_Cosine
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	}
	if q.dimension <= 0 {
		return rerr.New(rerr.KindConfigError, "qdrant requires a positive dimension")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig:  qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: uint64(q.dimension), Distance: distance}),
	})
	if err != nil {
		return rerr.Wrap(err, rerr.ErrProviderUnavailable, "creating qdrant collection")
	}
	return nil
}

func (q *qdrantStore) Dimension() int { return q.dimension }

func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *qdrantStore) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != q.dimension {
			return rerr.New(rerr.KindInvalidInput, "chunk %s embedding dimension %d != store dimension %d", c.ID, len(c.Embedding), q.dimension)
		}
		uuidStr := pointID(c.ID)
		payload := map[string]any{
			payloadOriginalIDField: c.ID,
			"document_id":          c.DocumentID,
			"chunk_index":          c.ChunkIndex,
			"content":              c.Text,
			"token_count":          c.TokenCount,
			"char_count":           c.CharCount,
			"page_number":          c.PageNumber,
			"page_range_end":       c.PageRangeEnd,
		}
		if q, _ := json.Marshal(c.Quality); len(q) > 0 {
			payload["quality"] = string(q)
		}
		if kw, _ := json.Marshal(c.Keywords); len(kw) > 0 {
			payload["keywords"] = string(kw)
		}
		if en, _ := json.Marshal(c.Entities); len(en) > 0 {
			payload["entities"] = string(en)
		}
		for k, v := range c.Metadata {
			payload[k] = fmt.Sprintf("%v", v)
		}
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points}); err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "upserting qdrant points")
	}
	return nil
}

func (q *qdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "deleting qdrant points for document %s", documentID)
	}
	return nil
}

func (q *qdrantStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filters map[string]string, threshold float64) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var qfilter *qdrant.Filter
	if len(filters) > 0 {
		must := make([]*qdrant.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qfilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	thr := float32(threshold)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qfilter,
		ScoreThreshold: &thr,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "qdrant query")
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		c := domain.Chunk{Metadata: map[string]any{}}
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadOriginalIDField:
					c.ID = v.GetStringValue()
				case "document_id":
					c.DocumentID = v.GetStringValue()
				case "chunk_index":
					c.ChunkIndex = int(v.GetIntegerValue())
				case "content":
					c.Text = v.GetStringValue()
				case "token_count":
					c.TokenCount = int(v.GetIntegerValue())
				case "char_count":
					c.CharCount = int(v.GetIntegerValue())
				case "page_number":
					c.PageNumber = int(v.GetIntegerValue())
				case "page_range_end":
					c.PageRangeEnd = int(v.GetIntegerValue())
				case "quality":
					_ = json.Unmarshal([]byte(v.GetStringValue()), &c.Quality)
				case "keywords":
					_ = json.Unmarshal([]byte(v.GetStringValue()), &c.Keywords)
				case "entities":
					_ = json.Unmarshal([]byte(v.GetStringValue()), &c.Entities)
				default:
					c.Metadata[k] = v.GetStringValue()
				}
			}
		}
		if c.ID == "" {
			c.ID = hit.Id.GetUuid()
		}
		out = append(out, Result{Chunk: c, Similarity: float64(hit.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.ChunkIndex < out[j].Chunk.ChunkIndex
	})
	return out, nil
}

func (q *qdrantStore) CountChunks(ctx context.Context, filter map[string]string) (int, error) {
	var qfilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qfilter = &qdrant.Filter{Must: must}
	}
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection, Filter: qfilter, Exact: &exact})
	if err != nil {
		return 0, rerr.Wrap(err, rerr.ErrProviderUnavailable, "counting qdrant points")
	}
	return int(n), nil
}
