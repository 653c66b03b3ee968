package query

import (
	"context"
	"testing"

	"planrag/internal/llm"
)

func TestProcessParsesWellFormedTOONResponse(t *testing.T) {
	provider := llm.NewDeterministic(8192, func(_ []llm.Message) string {
		return "keywords: salud,educación\nentities: PLN\nintent: comparison\nenhancedQuery: pregunta ampliada"
	})
	got := Process(context.Background(), provider, "¿Qué propone el PLN?")
	if got.Degraded {
		t.Fatalf("expected a clean parse, not a degraded fallback")
	}
	if got.Intent != "comparison" || got.EnhancedQuery != "pregunta ampliada" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(got.Entities) != 1 || got.Entities[0] != "PLN" {
		t.Fatalf("unexpected entities: %+v", got.Entities)
	}
}

func TestProcessDegradesGracefullyOnUnstructuredResponse(t *testing.T) {
	provider := llm.NewDeterministic(8192, func(_ []llm.Message) string {
		return "No puedo ayudar con eso, lo siento."
	})
	got := Process(context.Background(), provider, "¿Qué hora es?")
	if !got.Degraded {
		t.Fatalf("expected degraded fallback for unstructured response")
	}
	if got.Intent != "question" {
		t.Fatalf("expected fallback intent 'question', got %q", got.Intent)
	}
	if got.EnhancedQuery != "¿Qué hora es?" {
		t.Fatalf("expected fallback enhancedQuery to echo the original question, got %q", got.EnhancedQuery)
	}
	if len(got.Entities) != 0 {
		t.Fatalf("expected empty entities on fallback, got %v", got.Entities)
	}
}
