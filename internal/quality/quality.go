// Package quality implements C8: scoring each chunk for extraction quality
// and extracting keywords/entities used both for retrieval-time filtering
// and for the domain-keyword gate in the quality score itself.
package quality

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"planrag/internal/domain"
)

// domainKeywords is the curated list the has-keywords signal checks against.
// Not exhaustive: a chunk missing all of these but otherwise well-formed
// still scores reasonably via the other three signals.
var domainKeywords = []string{
	"educación", "educacion", "salud", "seguridad", "economía", "economia",
	"empleo", "infraestructura", "vivienda", "ambiente", "agricultura",
	"turismo", "tecnología", "tecnologia", "transporte", "energía", "energia",
	"pobreza", "desarrollo", "inversión", "inversion", "impuesto", "presupuesto",
	"corrupción", "corrupcion", "justicia", "cultura", "exportación", "exportacion",
}

var spanishStopwords = buildStopwordSet([]string{
	"el", "la", "los", "las", "un", "una", "unos", "unas", "de", "del", "al",
	"a", "ante", "bajo", "con", "contra", "desde", "en", "entre", "hacia",
	"hasta", "para", "por", "según", "segun", "sin", "sobre", "tras", "y",
	"o", "u", "e", "ni", "que", "se", "su", "sus", "es", "son", "ser", "está",
	"esta", "están", "estan", "fue", "fueron", "ha", "han", "había", "habia",
	"como", "más", "mas", "pero", "si", "no", "lo", "le", "les", "este",
	"esta", "estos", "estas", "ese", "esa", "esos", "esas", "también", "tambien",
	"muy", "ya", "cuando", "donde", "cual", "cuales", "quien", "quienes",
})

func buildStopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var wordPattern = regexp.MustCompile(`\p{L}+`)
var sentenceEndPattern = regexp.MustCompile(`[.!?]+`)
var acronymPattern = regexp.MustCompile(`\b[A-ZÁÉÍÓÚÑ]{2,}\b`)
var capitalizedRunPattern = regexp.MustCompile(`\b\p{Lu}[\p{Ll}]+(?:\s+\p{Lu}[\p{Ll}]+)+\b`)

// Score computes the four signals and the weighted overall quality for a
// chunk's text, against a target chunk length in characters.
func Score(text string, targetChars int) domain.QualityBreakdown {
	hasKeywords := 0.0
	if hasKeyword(text) {
		hasKeywords = 1.0
	}
	return domain.QualityBreakdown{
		Length:         lengthScore(text, targetChars),
		SpecialCharInv: specialCharScore(text),
		HasKeywords:    hasKeywords,
		Readability:    readabilityScore(text),
	}
}

// lengthScore is Gaussian-like around target: 0 at length 0, 1 at target,
// falling back to 0 at twice the target and staying 0 beyond it. It is
// exp(-ratio²) shifted and rescaled so that ratio = ±1 maps to 0.
func lengthScore(text string, target int) float64 {
	if target <= 0 {
		target = 1
	}
	n := float64(len(text))
	t := float64(target)
	ratio := (n - t) / t
	floor := math.Exp(-1)
	return clamp01((math.Exp(-(ratio*ratio)) - floor) / (1 - floor))
}

// specialCharScore returns the fraction of characters that ARE letters,
// digits, whitespace, or common punctuation — i.e. 1 minus the "artifact"
// ratio, since the overall formula wants high values to mean good chunks.
func specialCharScore(text string) float64 {
	if text == "" {
		return 0
	}
	total := 0
	ordinary := 0
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			ordinary++
		case strings.ContainsRune(".,;:!?¿¡()[]{}\"'-–—%/áéíóúñÁÉÍÓÚÑ", r):
			ordinary++
		}
	}
	return float64(ordinary) / float64(total)
}

func hasKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// readabilityScore penalizes both very short average word length (likely
// garbled extraction) and very long (run-on or un-split artifacts), and
// penalizes texts with essentially no sentence structure.
func readabilityScore(text string) float64 {
	words := wordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return 0
	}
	totalLen := 0
	for _, w := range words {
		totalLen += len([]rune(w))
	}
	avgWordLen := float64(totalLen) / float64(len(words))
	// Spanish average word length is roughly 5; penalize deviation.
	wordScore := math.Exp(-math.Pow((avgWordLen-5)/4, 2))

	sentences := sentenceEndPattern.Split(text, -1)
	nonEmpty := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty++
		}
	}
	sentenceScore := 1.0
	if nonEmpty == 0 {
		sentenceScore = 0.3
	} else {
		wordsPerSentence := float64(len(words)) / float64(nonEmpty)
		if wordsPerSentence > 60 {
			sentenceScore = 0.5
		}
	}
	return clamp01(wordScore * sentenceScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Keywords extracts up to topN terms by frequency after stop-word removal,
// lowercasing, and length >= 3 filtering. Ties broken by longer term first.
func Keywords(text string, topN int) []string {
	if topN <= 0 {
		topN = 10
	}
	counts := map[string]int{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := spanishStopwords[w]; stop {
			continue
		}
		counts[w]++
	}
	type termCount struct {
		term  string
		count int
	}
	terms := make([]termCount, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, termCount{term, count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		if len(terms[i].term) != len(terms[j].term) {
			return len(terms[i].term) > len(terms[j].term)
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > topN {
		terms = terms[:topN]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.term
	}
	return out
}

// Entities extracts capitalized multi-word sequences (proper noun phrases)
// and known acronyms as a deduplicated set, in first-seen order.
func Entities(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, m := range capitalizedRunPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range acronymPattern.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// DropThreshold is the overall-quality floor below which C9 excludes a
// chunk from embedding and storage.
const DropThreshold = 0.2
