package catalog

import (
	"context"
	"testing"
	"time"

	"planrag/internal/domain"
)

func newSeeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.Seed([]domain.Party{
		{Slug: "pln", Name: "Partido Liberación Nacional", Abbreviation: "PLN"},
		{Slug: "pusc", Name: "Partido Unidad Social Cristiana", Abbreviation: "PUSC"},
	})
	if err := m.UpsertDocument(context.Background(), domain.Document{
		ID: "doc-pln-2026", PartySlug: "pln", SourceURL: "https://example.com/pln.pdf", DownloadedAt: time.Now(),
	}); err != nil {
		t.Fatalf("upsert document: %v", err)
	}
	return m
}

func TestResolverTitleUsesPartyName(t *testing.T) {
	m := newSeeded(t)
	r := Resolver{Parties: m, Documents: m}
	if got := r.Title("doc-pln-2026"); got != "Plan de gobierno Partido Liberación Nacional" {
		t.Fatalf("unexpected title: %q", got)
	}
}

func TestResolverTitleFallsBackToDocumentIDWhenUnknown(t *testing.T) {
	m := newSeeded(t)
	r := Resolver{Parties: m, Documents: m}
	if got := r.Title("doc-missing"); got != "doc-missing" {
		t.Fatalf("expected fallback to raw id, got %q", got)
	}
}

func TestResolverPartyAbbreviation(t *testing.T) {
	m := newSeeded(t)
	r := Resolver{Parties: m, Documents: m}
	if got := r.PartyAbbreviation("doc-pln-2026"); got != "PLN" {
		t.Fatalf("expected PLN, got %q", got)
	}
}

func TestResolverResolveEntitiesMatchesKnownPartiesOnly(t *testing.T) {
	m := newSeeded(t)
	r := Resolver{Parties: m, Documents: m}
	got := r.ResolveEntities([]string{"PLN", "Hospital Nacional", "pusc"})
	if len(got) != 2 {
		t.Fatalf("expected 2 recognized parties, got %v", got)
	}
	if got[0] != "pln" || got[1] != "pusc" {
		t.Fatalf("expected slugs pln,pusc in order, got %v", got)
	}
}
