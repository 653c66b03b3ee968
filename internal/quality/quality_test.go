package quality

import (
	"strings"
	"testing"
)

func TestScorePenalizesSpecialCharacterHeavyText(t *testing.T) {
	clean := "El gobierno invertira en educacion y salud para todos los costarricenses."
	garbled := "��###@@@%%%***&&&^^^~~~```"
	cleanScore := Score(clean, len(clean))
	garbledScore := Score(garbled, len(clean))
	if garbledScore.SpecialCharInv >= cleanScore.SpecialCharInv {
		t.Fatalf("garbled text should score lower on special-char signal: garbled=%f clean=%f", garbledScore.SpecialCharInv, cleanScore.SpecialCharInv)
	}
}

func TestScoreDetectsDomainKeyword(t *testing.T) {
	withKeyword := Score("El plan de salud y educación es prioritario.", 40)
	withoutKeyword := Score("El perro corre rapido por el parque todos los dias.", 40)
	if withKeyword.HasKeywords != 1.0 {
		t.Fatalf("expected has-keywords signal to fire")
	}
	if withoutKeyword.HasKeywords != 0.0 {
		t.Fatalf("expected has-keywords signal to stay off")
	}
}

func TestScoreOverallBelowDropThresholdForGarbage(t *testing.T) {
	garbage := strings.Repeat("@#$%^&*()_+=-", 10)
	// 1600 chars is the ingestion pipeline's default target (400 tokens * 4).
	b := Score(garbage, 1600)
	if b.Overall() >= DropThreshold {
		t.Fatalf("garbage text should fall below drop threshold, got %f", b.Overall())
	}
}

func TestKeywordsExcludesStopwordsAndBreaksTiesByLength(t *testing.T) {
	text := "la educacion y la educacion son temas de politica publica y politica economica"
	kw := Keywords(text, 3)
	if len(kw) == 0 {
		t.Fatal("expected keywords")
	}
	for _, w := range kw {
		if w == "la" || w == "y" || w == "de" || w == "son" {
			t.Fatalf("stopword %q leaked into keyword list", w)
		}
	}
	if kw[0] != "educacion" {
		t.Fatalf("expected most frequent term first, got %q", kw[0])
	}
}

func TestEntitiesExtractsCapitalizedPhrasesAndAcronyms(t *testing.T) {
	text := "El Partido Liberación Nacional y el TSE firmaron el acuerdo."
	ents := Entities(text)
	found := map[string]bool{}
	for _, e := range ents {
		found[e] = true
	}
	if !found["TSE"] {
		t.Fatalf("expected acronym TSE in entities, got %v", ents)
	}
}
