package cache

import "testing"

func TestDeriveChatKeyInvariantUnderCaseAndWhitespace(t *testing.T) {
	base := DeriveChatKey("¿Qué propone el PLN?", "A", 5, 0.35)
	perturbed := DeriveChatKey("  ¿QUÉ   propone el PLN?  ", "A", 5, 0.35)
	if base != perturbed {
		t.Fatalf("cache key must be invariant under case/whitespace perturbation: %+v vs %+v", base, perturbed)
	}
}

func TestDeriveChatKeyDiffersByParams(t *testing.T) {
	a := DeriveChatKey("pregunta", "A", 5, 0.35)
	b := DeriveChatKey("pregunta", "B", 5, 0.35)
	if a.QuestionHash != b.QuestionHash {
		t.Fatalf("question hash must not depend on retrieval params")
	}
	if a.ParamsHash == b.ParamsHash {
		t.Fatalf("params hash must depend on party filter")
	}
}

func TestDeriveComparisonKeyOrderIndependent(t *testing.T) {
	a := DeriveComparisonKey("seguridad", []string{"pln", "pusc"})
	b := DeriveComparisonKey("seguridad", []string{"pusc", "pln"})
	if a != b {
		t.Fatalf("comparison key must not depend on party slice order")
	}
}
