// Package query implements C10: using the LLM to extract a structured view
// of a user's question, reducing search drift and improving recall.
package query

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"

	"planrag/internal/llm"
	"planrag/internal/toon"
)

// EnhancedQuery is the structured view of a question C10 produces.
type EnhancedQuery struct {
	Keywords      []string
	Entities      []string
	Intent        string
	EnhancedQuery string
	Degraded      bool
}

// tokenSavings is a process-wide counter of tokens saved by using TOON
// instead of JSON for structured query extraction, per the design note on
// retaining an observability counter as an explicit atomic rather than a
// hidden global.
var tokenSavings int64

// TokenSavings returns the running total of estimated tokens saved.
func TokenSavings() int64 { return atomic.LoadInt64(&tokenSavings) }

// ResetTokenSavings zeroes the counter; intended for test isolation.
func ResetTokenSavings() { atomic.StoreInt64(&tokenSavings, 0) }

const systemPrompt = `Eres un asistente que analiza preguntas sobre planes de gobierno de partidos políticos costarricenses.
Devuelve exclusivamente el siguiente formato, una línea por campo, sin explicación adicional:
keywords: palabra1,palabra2
entities: SIGLA1,SIGLA2
intent: question|comparison|lookup|opinion_probe
enhancedQuery: una paráfrasis que expanda siglas y agregue sinónimos probables`

// Process extracts an EnhancedQuery from question using provider. On any
// LLM or parse failure it degrades gracefully rather than propagating an
// error: a failed structured extraction must never block the query path.
func Process(ctx context.Context, provider llm.Provider, question string) EnhancedQuery {
	content, _, _, err := provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: question},
	}, llm.Options{Temperature: 0.2, MaxTokens: 300})
	if err != nil {
		return fallback(question)
	}

	rec, ok := toon.Parse(content)
	if !ok {
		return fallback(question)
	}

	estimateTOONJSONSavings(content)

	return EnhancedQuery{
		Keywords:      rec.Keywords,
		Entities:      rec.Entities,
		Intent:        rec.Intent,
		EnhancedQuery: orDefault(rec.EnhancedQuery, question),
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// estimateTOONJSONSavings credits the savings counter with the rough
// difference between this TOON payload and its JSON-equivalent size,
// consistent with the "~30-50% fewer tokens" rationale TOON is chosen for.
func estimateTOONJSONSavings(toonText string) {
	jsonLen := len(toonText) + len(toonText)/2 // rough JSON-overhead estimate
	saved := (jsonLen - len(toonText)) / 4      // chars -> approx tokens
	if saved > 0 {
		atomic.AddInt64(&tokenSavings, int64(saved))
	}
}

var tokenizePattern = regexp.MustCompile(`\p{L}+`)

// fallback implements the degrade-gracefully contract: tokenize(query),
// empty entities, intent "question", enhancedQuery == query verbatim.
func fallback(question string) EnhancedQuery {
	words := tokenizePattern.FindAllString(strings.ToLower(question), -1)
	return EnhancedQuery{
		Keywords:      words,
		Entities:      nil,
		Intent:        "question",
		EnhancedQuery: question,
		Degraded:      true,
	}
}
