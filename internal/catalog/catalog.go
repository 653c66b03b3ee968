// Package catalog holds the read side of parties and documents: the
// reference entities the query and ingestion pipelines look up by slug or
// id but never create or mutate directly (parties are maintained by an
// external collaborator; documents are upserted only by C9).
package catalog

import (
	"context"
	"strings"
	"sync"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// PartyRepo reads the party reference table.
type PartyRepo interface {
	List(ctx context.Context) ([]domain.Party, error)
	Get(ctx context.Context, slug string) (domain.Party, bool, error)
}

// DocumentRepo reads and upserts the documents table; only C9 writes to it.
// Methods are named distinctly from PartyRepo's so one type (Memory,
// Postgres) can implement both without a signature collision.
type DocumentRepo interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (domain.Document, bool, error)
	UpsertDocument(ctx context.Context, doc domain.Document) error
}

// Memory is an in-process PartyRepo+DocumentRepo, grounded on the teacher's
// memory_vector.go map-plus-mutex shape. Suitable for tests and small
// deployments; Postgres is the production-scale backend (postgres.go).
type Memory struct {
	mu        sync.RWMutex
	parties   map[string]domain.Party
	documents map[string]domain.Document
}

// NewMemory constructs an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{parties: make(map[string]domain.Party), documents: make(map[string]domain.Document)}
}

// Seed loads the static party reference list, typically once at startup
// from a config file since parties are externally maintained.
func (m *Memory) Seed(parties []domain.Party) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range parties {
		m.parties[p.Slug] = p
	}
}

func (m *Memory) List(ctx context.Context) ([]domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Party, 0, len(m.parties))
	for _, p := range m.parties {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, slug string) (domain.Party, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[slug]
	return p, ok, nil
}

func (m *Memory) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

func (m *Memory) UpsertDocument(ctx context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
	return nil
}

// Resolver adapts a PartyRepo+DocumentRepo pair into the lookups C12 and
// C14 need: document-id-to-title/abbreviation for citations, and
// free-text-entity-to-recognized-party-slug for the implicit filter.
type Resolver struct {
	Parties   PartyRepo
	Documents DocumentRepo
}

// Title renders a citation-friendly document title: the owning party's
// name when known, falling back to the raw document id.
func (r Resolver) Title(documentID string) string {
	doc, ok, err := r.Documents.GetDocument(context.Background(), documentID)
	if err != nil || !ok {
		return documentID
	}
	party, ok, err := r.Parties.Get(context.Background(), doc.PartySlug)
	if err != nil || !ok {
		return documentID
	}
	return "Plan de gobierno " + party.Name
}

// PartyAbbreviation resolves a document id to its owning party's short code.
func (r Resolver) PartyAbbreviation(documentID string) string {
	doc, ok, err := r.Documents.GetDocument(context.Background(), documentID)
	if err != nil || !ok {
		return ""
	}
	party, ok, err := r.Parties.Get(context.Background(), doc.PartySlug)
	if err != nil || !ok {
		return doc.PartySlug
	}
	return party.Abbreviation
}

// ResolveEntities keeps only the entities that match a known party's
// abbreviation, name, or slug (case-insensitive), used to decide whether
// the query processor's extracted entities unambiguously name one party.
func (r Resolver) ResolveEntities(entities []string) []string {
	parties, err := r.Parties.List(context.Background())
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entities {
		lower := strings.ToLower(strings.TrimSpace(e))
		for _, p := range parties {
			if strings.ToLower(p.Abbreviation) == lower || strings.ToLower(p.Name) == lower || strings.ToLower(p.Slug) == lower {
				out = append(out, p.Slug)
				break
			}
		}
	}
	return out
}

// ErrPartyNotFound is returned by handlers translating a missing slug.
var ErrPartyNotFound = rerr.New(rerr.KindNotFound, "party not found")
