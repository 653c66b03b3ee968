package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeQuestion applies the bit-exact normalization spec §6 requires:
// NFC normalization, Unicode-aware lowercasing, trim, and collapsing
// internal whitespace runs to a single space.
func NormalizeQuestion(q string) string {
	nfc := norm.NFC.String(q)
	lower := strings.ToLower(nfc)
	trimmed := strings.TrimSpace(lower)
	return collapseWhitespace(trimmed)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ChatKey is the two-hash chat-cache key described in §4.4: the bare
// question hash (enables "has this ever been asked") plus a composite hash
// disambiguating by retrieval parameters.
type ChatKey struct {
	QuestionHash string
	ParamsHash   string
}

// DeriveChatKey builds a ChatKey from a raw (unnormalized) question and its
// retrieval parameters, per §6's bit-exact composite-params-hash formula.
func DeriveChatKey(question, party string, topK int, minScore float64) ChatKey {
	norm := NormalizeQuestion(question)
	if party == "" {
		party = "all"
	}
	composite := norm + "|" + party + "|" + strconv.Itoa(topK) + "|" + strconv.FormatFloat(minScore, 'f', -1, 64)
	return ChatKey{
		QuestionHash: sha256Hex(norm),
		ParamsHash:   sha256Hex(composite),
	}
}

// ComparisonKey is the topic/parties-hash key for precomputed comparisons.
type ComparisonKey struct {
	TopicHash   string
	PartiesHash string
}

// DeriveComparisonKey builds a ComparisonKey from a raw topic and an
// unordered set of party slugs (sorted before hashing so ordering of the
// caller's slice never affects the key).
func DeriveComparisonKey(topic string, partySlugs []string) ComparisonKey {
	norm := NormalizeQuestion(topic)
	sorted := append([]string(nil), partySlugs...)
	sortStrings(sorted)
	return ComparisonKey{
		TopicHash:   sha256Hex(norm),
		PartiesHash: sha256Hex(strings.Join(sorted, ",")),
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
