package catalog

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// Postgres persists documents in Postgres; parties remain read-only
// reference data maintained by an external collaborator and are loaded
// from config rather than written here, per domain.Party's doc comment.
// Grounded on postgres_doc.go's documented schema and pool.go's pgxpool
// idiom, already adopted for the vector store.
type Postgres struct {
	pool    *pgxpool.Pool
	parties PartyRepo
}

// NewPostgres ensures the documents table exists and wraps pool. parties
// supplies the static party list (config-seeded Memory, typically).
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, parties PartyRepo) (*Postgres, error) {
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  party_slug TEXT NOT NULL,
  source_url TEXT NOT NULL,
  storage_path TEXT NOT NULL DEFAULT '',
  page_count INT NOT NULL DEFAULT 0,
  byte_size BIGINT NOT NULL DEFAULT 0,
  downloaded_at TIMESTAMPTZ,
  parsed_at TIMESTAMPTZ,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "creating documents table")
	}
	return &Postgres{pool: pool, parties: parties}, nil
}

func (p *Postgres) List(ctx context.Context) ([]domain.Party, error) {
	return p.parties.List(ctx)
}

func (p *Postgres) Get(ctx context.Context, slug string) (domain.Party, bool, error) {
	return p.parties.Get(ctx, slug)
}

func (p *Postgres) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, party_slug, source_url, storage_path, page_count, byte_size, downloaded_at, parsed_at, metadata FROM documents ORDER BY id`)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "listing documents")
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		var metaRaw []byte
		if err := rows.Scan(&d.ID, &d.PartySlug, &d.SourceURL, &d.StoragePath, &d.PageCount, &d.ByteSize, &d.DownloadedAt, &d.ParsedAt, &metaRaw); err != nil {
			return nil, rerr.Wrap(err, rerr.ErrPersistenceError, "scanning document row")
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	var d domain.Document
	var metaRaw []byte
	row := p.pool.QueryRow(ctx, `SELECT id, party_slug, source_url, storage_path, page_count, byte_size, downloaded_at, parsed_at, metadata FROM documents WHERE id=$1`, id)
	if err := row.Scan(&d.ID, &d.PartySlug, &d.SourceURL, &d.StoragePath, &d.PageCount, &d.ByteSize, &d.DownloadedAt, &d.ParsedAt, &metaRaw); err != nil {
		return domain.Document{}, false, nil
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &d.Metadata)
	}
	return d, true, nil
}

func (p *Postgres) UpsertDocument(ctx context.Context, doc domain.Document) error {
	metaRaw, _ := json.Marshal(doc.Metadata)
	_, err := p.pool.Exec(ctx, `
INSERT INTO documents (id, party_slug, source_url, storage_path, page_count, byte_size, downloaded_at, parsed_at, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  party_slug=EXCLUDED.party_slug, source_url=EXCLUDED.source_url, storage_path=EXCLUDED.storage_path,
  page_count=EXCLUDED.page_count, byte_size=EXCLUDED.byte_size, downloaded_at=EXCLUDED.downloaded_at,
  parsed_at=EXCLUDED.parsed_at, metadata=EXCLUDED.metadata`,
		doc.ID, doc.PartySlug, doc.SourceURL, doc.StoragePath, doc.PageCount, doc.ByteSize, doc.DownloadedAt, doc.ParsedAt, metaRaw)
	if err != nil {
		return rerr.Wrap(err, rerr.ErrPersistenceError, "upserting document %s", doc.ID)
	}
	return nil
}
