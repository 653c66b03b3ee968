// Package contextbuild implements C12: deduplicating, grouping, formatting, and
// budget-bounding retrieved chunks into a single prompt context plus a
// parallel citation list.
package contextbuild

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"planrag/internal/domain"
	"planrag/internal/vectorstore"
)

// Built is C12's output: the assembled prompt context and its citations,
// in the same order the context references them.
type Built struct {
	Context    string
	Citations  []domain.Source
	Truncated  bool
}

const approxCharsPerToken = 4
const minTruncatedSectionTokens = 100

// DocumentTitles resolves a document id to a human-readable title and party
// abbreviation for section headers; callers supply it from their document
// and party stores.
type DocumentTitles interface {
	Title(documentID string) string
	PartyAbbreviation(documentID string) string
}

// Build assembles context from results within budgetTokens, per §4.12.
func Build(results []vectorstore.Result, titles DocumentTitles, budgetTokens int) Built {
	deduped := dedupe(results)
	grouped := groupByParty(deduped, titles)

	var b strings.Builder
	var citations []domain.Source
	budgetChars := budgetTokens * approxCharsPerToken
	used := 0
	truncated := false

	for _, section := range grouped {
		rendered := renderSection(section, titles)
		if used+len(rendered) <= budgetChars {
			b.WriteString(rendered)
			used += len(rendered)
			citations = append(citations, citationsFor(section, titles)...)
			continue
		}
		remaining := budgetChars - used
		if remaining < minTruncatedSectionTokens*approxCharsPerToken {
			truncated = true
			continue
		}
		partial, cites := truncateSection(section, titles, remaining)
		b.WriteString(partial)
		citations = append(citations, cites...)
		used += len(partial)
		truncated = true
	}

	return Built{Context: b.String(), Citations: citations, Truncated: truncated}
}

// dedupe drops a chunk if it shares >= 80% of its shingled tokens with an
// already-kept chunk of higher (or equal, first-seen) similarity.
func dedupe(results []vectorstore.Result) []vectorstore.Result {
	ordered := append([]vectorstore.Result(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Similarity > ordered[j].Similarity })

	var kept []vectorstore.Result
	var keptShingles []map[string]struct{}
	for _, r := range ordered {
		shingles := shingleSet(r.Chunk.Text, 3)
		isDup := false
		for _, existing := range keptShingles {
			if overlapRatio(shingles, existing) >= 0.8 {
				isDup = true
				break
			}
		}
		if !isDup {
			kept = append(kept, r)
			keptShingles = append(keptShingles, shingles)
		}
	}
	return kept
}

var wordSplit = regexp.MustCompile(`\S+`)

func shingleSet(text string, n int) map[string]struct{} {
	words := wordSplit.FindAllString(strings.ToLower(text), -1)
	set := map[string]struct{}{}
	if len(words) < n {
		set[strings.Join(words, " ")] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(words); i++ {
		set[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return set
}

func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for k := range small {
		if _, ok := large[k]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// partySection groups one party's chunks, ordered by similarity descending.
type partySection struct {
	party   string
	results []vectorstore.Result
}

func groupByParty(results []vectorstore.Result, titles DocumentTitles) []partySection {
	order := []string{}
	byParty := map[string][]vectorstore.Result{}
	for _, r := range results {
		party := titles.PartyAbbreviation(r.Chunk.DocumentID)
		if _, ok := byParty[party]; !ok {
			order = append(order, party)
		}
		byParty[party] = append(byParty[party], r)
	}
	sections := make([]partySection, 0, len(order))
	for _, party := range order {
		rs := byParty[party]
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Similarity > rs[j].Similarity })
		sections = append(sections, partySection{party: party, results: rs})
	}
	// sections ordered by their best chunk's similarity, descending
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].results[0].Similarity > sections[j].results[0].Similarity
	})
	return sections
}

func renderSection(section partySection, titles DocumentTitles) string {
	var b strings.Builder
	for _, r := range section.results {
		title := titles.Title(r.Chunk.DocumentID)
		b.WriteString(fmt.Sprintf("### Party: %s (%s)\n", section.party, title))
		b.WriteString(r.Chunk.Text)
		if r.Chunk.HasPage() {
			b.WriteString(fmt.Sprintf(" (p. %d)", r.Chunk.PageNumber))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func citationsFor(section partySection, titles DocumentTitles) []domain.Source {
	out := make([]domain.Source, 0, len(section.results))
	for _, r := range section.results {
		out = append(out, domain.Source{
			Party:      section.party,
			Document:   titles.Title(r.Chunk.DocumentID),
			Page:       r.Chunk.PageNumber,
			Similarity: r.Similarity,
			Snippet:    snippet(r.Chunk.Text, 200),
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ID,
		})
	}
	return out
}

func snippet(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return strings.TrimSpace(text[:maxChars])
}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s`)

// truncateSection includes as many whole chunks as fit, then truncates the
// first chunk that doesn't at a sentence boundary if that still contributes
// at least minTruncatedSectionTokens tokens; otherwise that chunk is
// skipped entirely.
func truncateSection(section partySection, titles DocumentTitles, budgetChars int) (string, []domain.Source) {
	var b strings.Builder
	var cites []domain.Source
	used := 0
	for _, r := range section.results {
		title := titles.Title(r.Chunk.DocumentID)
		header := fmt.Sprintf("### Party: %s (%s)\n", section.party, title)
		body := r.Chunk.Text
		full := header + body + "\n\n"
		if used+len(full) <= budgetChars {
			b.WriteString(full)
			used += len(full)
			cites = append(cites, domain.Source{
				Party: section.party, Document: title, Page: r.Chunk.PageNumber, Similarity: r.Similarity,
				Snippet: snippet(body, 200), DocumentID: r.Chunk.DocumentID, ChunkID: r.Chunk.ID,
			})
			continue
		}
		remaining := budgetChars - used - len(header)
		if remaining < minTruncatedSectionTokens*approxCharsPerToken {
			break
		}
		truncatedBody := truncateAtSentence(body, remaining)
		b.WriteString(header)
		b.WriteString(truncatedBody)
		b.WriteString("\n\n")
		cites = append(cites, domain.Source{
			Party: section.party, Page: r.Chunk.PageNumber, Similarity: r.Similarity,
			Snippet: snippet(body, 200), DocumentID: r.Chunk.DocumentID, ChunkID: r.Chunk.ID,
		})
		break
	}
	return b.String(), cites
}

func truncateAtSentence(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	candidate := text[:maxChars]
	locs := sentenceBoundary.FindAllStringIndex(candidate, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(candidate)
	}
	last := locs[len(locs)-1]
	return strings.TrimSpace(candidate[:last[1]])
}
