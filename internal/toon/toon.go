// Package toon implements the newline-delimited, colon-separated compact
// notation used for structured LLM output in the query processor (C10), plus
// a JSON fallback decoder for models that ignore the format instruction.
package toon

import (
	"encoding/json"
	"strings"
)

// Record is the structured view of a user query that C10 extracts.
type Record struct {
	Keywords      []string `json:"keywords"`
	Entities      []string `json:"entities"`
	Intent        string   `json:"intent"`
	EnhancedQuery string   `json:"enhancedQuery"`
}

// Encode renders r in TOON form, one field per line.
func Encode(r Record) string {
	var b strings.Builder
	b.WriteString("keywords: ")
	b.WriteString(strings.Join(r.Keywords, ","))
	b.WriteString("\nentities: ")
	b.WriteString(strings.Join(r.Entities, ","))
	b.WriteString("\nintent: ")
	b.WriteString(r.Intent)
	b.WriteString("\nenhancedQuery: ")
	b.WriteString(r.EnhancedQuery)
	return b.String()
}

// Parse accepts JSON, fenced TOON, or unfenced TOON, and never fails: on any
// parse error it returns false so the caller degrades to its own fallback.
func Parse(raw string) (Record, bool) {
	text := stripFence(strings.TrimSpace(raw))

	if rec, ok := parseJSON(text); ok {
		return rec, true
	}
	return parseTOON(text)
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	// drop the opening fence line (which may carry a language tag) and a
	// trailing fence line if present.
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseJSON(s string) (Record, bool) {
	if !strings.HasPrefix(s, "{") {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

var validIntents = map[string]bool{
	"question": true, "comparison": true, "lookup": true, "opinion_probe": true,
}

func parseTOON(s string) (Record, bool) {
	var rec Record
	var sawAny bool
	for _, line := range strings.Split(s, "\n") {
		key, value, ok := splitFirstColonSpace(line)
		if !ok {
			continue
		}
		switch key {
		case "keywords":
			rec.Keywords = splitList(value)
			sawAny = true
		case "entities":
			rec.Entities = splitList(value)
			sawAny = true
		case "intent":
			if validIntents[value] {
				rec.Intent = value
			} else {
				rec.Intent = "question"
			}
			sawAny = true
		case "enhancedQuery":
			rec.EnhancedQuery = value
			sawAny = true
		default:
			// unknown keys ignored
		}
	}
	if !sawAny {
		return Record{}, false
	}
	if rec.Intent == "" {
		rec.Intent = "question"
	}
	return rec, true
}

func splitFirstColonSpace(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		// allow a bare "key:" with an empty value
		if strings.HasSuffix(line, ":") {
			return strings.TrimSpace(line[:len(line)-1]), "", true
		}
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), line[idx+2:], true
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
