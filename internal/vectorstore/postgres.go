package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// pgvectorStore persists chunks in Postgres via the pgvector extension.
// Grounded on the teacher's postgres_vector.go: same CREATE EXTENSION /
// metric-specific score-expression / vector-literal-formatting approach,
// generalized from a flat (id, vec, metadata) table to the full Chunk
// shape and the document-scoped delete/re-ingest semantics C9 requires.
type pgvectorStore struct {
	pool      *pgxpool.Pool
	dimension int
	metric    string // cosine|l2|ip
}

// NewPostgres takes an already open pgxpool.Pool and ensures the pgvector
// extension and chunks table exist.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, dimension int, metric string) (Store, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "creating pgvector extension")
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
  id TEXT PRIMARY KEY,
  document_id TEXT NOT NULL,
  chunk_index INT NOT NULL,
  content TEXT NOT NULL,
  embedding vector(%d),
  token_count INT NOT NULL DEFAULT 0,
  char_count INT NOT NULL DEFAULT 0,
  page_number INT NOT NULL DEFAULT 0,
  page_range_end INT NOT NULL DEFAULT 0,
  quality JSONB NOT NULL DEFAULT '{}'::jsonb,
  keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
  entities JSONB NOT NULL DEFAULT '[]'::jsonb,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE(document_id, chunk_index)
);
`, dimension)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "creating chunks table")
	}
	return &pgvectorStore{pool: pool, dimension: dimension, metric: strings.ToLower(strings.TrimSpace(metric))}, nil
}

func (p *pgvectorStore) Dimension() int { return p.dimension }

func (p *pgvectorStore) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != p.dimension {
			return rerr.New(rerr.KindInvalidInput, "chunk %s embedding dimension %d != store dimension %d", c.ID, len(c.Embedding), p.dimension)
		}
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "beginning chunk upsert transaction")
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		quality, _ := json.Marshal(c.Quality)
		keywords, _ := json.Marshal(c.Keywords)
		entities, _ := json.Marshal(c.Entities)
		metadata, _ := json.Marshal(c.Metadata)
		var vecLit any
		if c.Embedding != nil {
			vecLit = toVectorLiteral(c.Embedding)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (id, document_id, chunk_index, content, embedding, token_count, char_count,
                     page_number, page_range_end, quality, keywords, entities, metadata, created_at)
VALUES ($1,$2,$3,$4,$5::vector,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (document_id, chunk_index) DO UPDATE SET
  id=EXCLUDED.id, content=EXCLUDED.content, embedding=EXCLUDED.embedding,
  token_count=EXCLUDED.token_count, char_count=EXCLUDED.char_count,
  page_number=EXCLUDED.page_number, page_range_end=EXCLUDED.page_range_end,
  quality=EXCLUDED.quality, keywords=EXCLUDED.keywords, entities=EXCLUDED.entities,
  metadata=EXCLUDED.metadata
`, c.ID, c.DocumentID, c.ChunkIndex, c.Text, vecLit, c.TokenCount, c.CharCount,
			c.PageNumber, c.PageRangeEnd, quality, keywords, entities, metadata, chunkCreatedAt(c))
		if err != nil {
			return rerr.Wrap(err, rerr.ErrPersistenceError, "upserting chunk %s", c.ID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "committing chunk upsert")
	}
	return nil
}

func chunkCreatedAt(c domain.Chunk) time.Time {
	if c.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return c.CreatedAt
}

func (p *pgvectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "deleting chunks for document %s", documentID)
	}
	return nil
}

func (p *pgvectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filters map[string]string, threshold float64) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	vecLit := toVectorLiteral(vector)
	op := "<=>"
	scoreExpr := "1 - (embedding <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op = "<->"
		scoreExpr = "1 - (embedding <-> $1::vector)"
	case "ip", "dot":
		op = "<#>"
		scoreExpr = "-(embedding <#> $1::vector)"
	}
	args := []any{vecLit, threshold, k}
	where := fmt.Sprintf("WHERE embedding IS NOT NULL AND %s > $2", scoreExpr)
	where += filterClause(filters, &args)
	query := fmt.Sprintf(`
SELECT id, document_id, chunk_index, content, token_count, char_count, page_number, page_range_end,
       quality, keywords, entities, metadata, created_at, %s AS score, embedding %s $1::vector AS distance
FROM chunks %s
ORDER BY score DESC, distance ASC, chunk_index ASC
LIMIT $3`, scoreExpr, op, where)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "similarity search query")
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var c domain.Chunk
		var quality, keywords, entities, metadata []byte
		var score, distance float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.TokenCount, &c.CharCount,
			&c.PageNumber, &c.PageRangeEnd, &quality, &keywords, &entities, &metadata, &c.CreatedAt, &score, &distance); err != nil {
			return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "scanning similarity search row")
		}
		_ = json.Unmarshal(quality, &c.Quality)
		_ = json.Unmarshal(keywords, &c.Keywords)
		_ = json.Unmarshal(entities, &c.Entities)
		_ = json.Unmarshal(metadata, &c.Metadata)
		out = append(out, Result{Chunk: c, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "reading similarity search rows")
	}
	return out, nil
}

func (p *pgvectorStore) CountChunks(ctx context.Context, filter map[string]string) (int, error) {
	var args []any
	where := filterClause(filter, &args)
	query := "SELECT count(*) FROM chunks"
	if where != "" {
		query += " WHERE " + strings.TrimPrefix(where, " AND ")
	}
	var n int
	err := p.pool.QueryRow(ctx, query, args...).Scan(&n)
	if err != nil && err != pgx.ErrNoRows {
		return 0, rerr.Wrap(err, rerr.ErrPersistenceError, "counting chunks")
	}
	return n, nil
}

// filterClause splits filter into the document_id first-class column (which
// is never stored in metadata, matching ingestpipeline's write path) and any
// remaining keys, matched via metadata @>. Appends parameter values to args
// and returns an " AND ..." fragment referencing the new placeholders
// (numbered starting after whatever is already in args), or "" if filter is
// empty. Mirrors memory.go's matchesFilter special-casing of "document_id".
func filterClause(filter map[string]string, args *[]any) string {
	if len(filter) == 0 {
		return ""
	}
	var clause strings.Builder
	rest := make(map[string]string, len(filter))
	for k, v := range filter {
		if k == "document_id" {
			*args = append(*args, v)
			fmt.Fprintf(&clause, " AND document_id = $%d", len(*args))
			continue
		}
		rest[k] = v
	}
	if len(rest) > 0 {
		filterJSON, _ := json.Marshal(toAnyMap(rest))
		*args = append(*args, filterJSON)
		fmt.Fprintf(&clause, " AND metadata @> $%d", len(*args))
	}
	return clause.String()
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
