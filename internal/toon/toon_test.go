package toon

import "testing"

func TestEncodeParseRoundTrip(t *testing.T) {
	rec := Record{
		Keywords:      []string{"salud", "educación"},
		Entities:      []string{"PLN", "PUSC"},
		Intent:        "comparison",
		EnhancedQuery: "¿Qué proponen el PLN y el PUSC en salud y educación?",
	}
	encoded := Encode(rec)
	got, ok := Parse(encoded)
	if !ok {
		t.Fatalf("expected parse to succeed for %q", encoded)
	}
	if got.Intent != rec.Intent || got.EnhancedQuery != rec.EnhancedQuery {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
	if len(got.Keywords) != 2 || len(got.Entities) != 2 {
		t.Fatalf("round trip list mismatch: got %+v", got)
	}
}

func TestParseAcceptsFencedTOON(t *testing.T) {
	raw := "```\nkeywords: a,b\nentities: \nintent: question\nenhancedQuery: hola\n```"
	got, ok := Parse(raw)
	if !ok {
		t.Fatalf("expected fenced TOON to parse")
	}
	if len(got.Entities) != 0 {
		t.Fatalf("expected empty entities list, got %v", got.Entities)
	}
	if got.EnhancedQuery != "hola" {
		t.Fatalf("unexpected enhancedQuery %q", got.EnhancedQuery)
	}
}

func TestParseAcceptsJSONFallback(t *testing.T) {
	raw := `{"keywords":["a"],"entities":[],"intent":"lookup","enhancedQuery":"x"}`
	got, ok := Parse(raw)
	if !ok {
		t.Fatalf("expected JSON to parse")
	}
	if got.Intent != "lookup" {
		t.Fatalf("unexpected intent %q", got.Intent)
	}
}

func TestParseDefaultsUnknownIntentToQuestion(t *testing.T) {
	got, ok := Parse("keywords: x\nintent: rant\nenhancedQuery: y")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if got.Intent != "question" {
		t.Fatalf("expected unknown intent to normalize to question, got %q", got.Intent)
	}
}

func TestParseFailsGracefullyOnGarbage(t *testing.T) {
	if _, ok := Parse("this is not structured at all just prose"); ok {
		t.Fatalf("expected parse to fail for unstructured prose")
	}
}
