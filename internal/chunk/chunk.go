// Package chunk implements C7: segmenting cleaned document text into
// overlapping, token-bounded chunks that preserve paragraph integrity and
// carry page metadata forward from the text extractor's page index.
package chunk

import (
	"regexp"
	"strings"

	"planrag/internal/pdf"
)

// Options tunes the chunking algorithm. Zero TargetTokens and MaxTokens fall
// back to the recommended defaults; a zero OverlapTokens means no overlap.
type Options struct {
	TargetTokens  int
	MaxTokens     int
	OverlapTokens int
}

// DefaultOptions matches the recommended defaults: 400 target, 600 hard
// maximum, 50 tokens of overlap.
func DefaultOptions() Options {
	return Options{TargetTokens: 400, MaxTokens: 600, OverlapTokens: 50}
}

func (o Options) normalize() Options {
	if o.TargetTokens <= 0 {
		o.TargetTokens = 400
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 600
	}
	if o.MaxTokens < o.TargetTokens {
		o.MaxTokens = o.TargetTokens
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	return o
}

// charsPerToken approximates tokenization for Spanish text, consistent with
// the embedding model family, without pulling in a model-specific tokenizer.
const charsPerToken = 4

func tokensToChars(tokens int) int { return tokens * charsPerToken }

// Chunk is one segment produced by Split, with byte offsets into the
// original cleaned text so callers can cross-reference page metadata.
type Chunk struct {
	Index        int
	Text         string
	StartOffset  int
	EndOffset    int
	PageNumber   int
	PageRangeEnd int
}

var paragraphSplit = regexp.MustCompile(`\n{2,}`)
var sentenceSplit = regexp.MustCompile(`(?s)([.!?¡¿]+\s+)`)

// paragraphSpan is a paragraph (or a further split of an oversized one)
// together with its real byte offsets in the original cleaned text.
type paragraphSpan struct {
	text  string
	start int
	end   int
}

// Split segments cleanedText into overlapping chunks per §4.7's algorithm:
// walk paragraphs, accumulating until the hard maximum would be exceeded,
// emit, then seed the next chunk with the trailing overlap of the last one.
// Paragraphs (then sentences, then words) that alone exceed the hard
// maximum are split further. Chunks cover the text in order with no
// content dropped.
func Split(cleanedText string, pageIndex []pdf.PageOffset, opt Options) []Chunk {
	opt = opt.normalize()
	maxChars := tokensToChars(opt.MaxTokens)
	overlapChars := tokensToChars(opt.OverlapTokens)

	spans := splitParagraphSpans(cleanedText, maxChars)
	if len(spans) == 0 {
		return nil
	}

	var chunks []Chunk
	var cur []paragraphSpan
	curLen := 0

	emit := func() {
		if len(cur) == 0 {
			return
		}
		start := cur[0].start
		end := cur[len(cur)-1].end
		text := cleanedText[start:end]
		chunks = append(chunks, makeChunk(len(chunks), text, start, end, pageIndex))
	}

	for _, span := range spans {
		addLen := len(span.text)
		if curLen > 0 {
			addLen += 2
		}
		if curLen > 0 && curLen+addLen > maxChars {
			emit()
			cur = seedOverlap(cur, overlapChars)
			curLen = 0
			for _, s := range cur {
				if curLen > 0 {
					curLen += 2
				}
				curLen += len(s.text)
			}
		}
		cur = append(cur, span)
		if curLen > 0 {
			curLen += 2
		}
		curLen += len(span.text)
	}
	emit()
	return chunks
}

// seedOverlap returns the trailing text of prev, at most overlapChars long,
// so the next chunk opens with cross-chunk context. A span that would push
// the total past overlapChars contributes only its tail, starting at the
// next word boundary.
func seedOverlap(prev []paragraphSpan, overlapChars int) []paragraphSpan {
	if overlapChars <= 0 || len(prev) == 0 {
		return nil
	}
	var kept []paragraphSpan
	total := 0
	for i := len(prev) - 1; i >= 0; i-- {
		s := prev[i]
		if need := overlapChars - total; len(s.text) > need {
			cut := len(s.text) - need
			if sp := strings.IndexByte(s.text[cut:], ' '); sp >= 0 {
				cut += sp + 1
			} else {
				cut = len(s.text)
			}
			if strings.TrimSpace(s.text[cut:]) != "" {
				kept = append([]paragraphSpan{{text: s.text[cut:], start: s.start + cut, end: s.end}}, kept...)
			}
			break
		}
		total += len(s.text)
		kept = append([]paragraphSpan{s}, kept...)
	}
	return kept
}

func makeChunk(index int, text string, start, end int, pageIndex []pdf.PageOffset) Chunk {
	startPage := pdf.PageForOffset(pageIndex, start)
	endPage := pdf.PageForOffset(pageIndex, end)
	c := Chunk{Index: index, Text: strings.TrimSpace(text), StartOffset: start, EndOffset: end, PageNumber: startPage}
	if endPage > startPage {
		c.PageRangeEnd = endPage
	}
	return c
}

// splitParagraphSpans walks cleanedText's paragraphs in order, tracking
// each piece's real byte offsets, and further splits any paragraph whose
// length alone exceeds maxChars at sentence, then word, boundaries.
func splitParagraphSpans(cleanedText string, maxChars int) []paragraphSpan {
	var spans []paragraphSpan
	cursor := 0
	for _, loc := range paragraphBoundaries(cleanedText) {
		raw := cleanedText[cursor:loc]
		spans = append(spans, splitOversizedSpan(raw, cursor, maxChars)...)
		cursor = loc
		// skip the paragraph-separator run itself
		for cursor < len(cleanedText) && (cleanedText[cursor] == '\n') {
			cursor++
		}
	}
	if cursor < len(cleanedText) {
		spans = append(spans, splitOversizedSpan(cleanedText[cursor:], cursor, maxChars)...)
	}
	var out []paragraphSpan
	for _, s := range spans {
		if strings.TrimSpace(s.text) != "" {
			out = append(out, s)
		}
	}
	return out
}

// paragraphBoundaries returns the start offsets of each paragraph-separator
// run (a blank line) in text.
func paragraphBoundaries(text string) []int {
	locs := paragraphSplit.FindAllStringIndex(text, -1)
	out := make([]int, 0, len(locs))
	for _, l := range locs {
		out = append(out, l[0])
	}
	return out
}

func splitOversizedSpan(s string, base int, maxChars int) []paragraphSpan {
	if len(s) <= maxChars {
		return []paragraphSpan{{text: s, start: base, end: base + len(s)}}
	}
	sentences := splitSentences(s)
	if len(sentences) > 1 {
		var out []paragraphSpan
		offset := 0
		for _, sent := range sentences {
			idx := strings.Index(s[offset:], sent)
			if idx < 0 {
				idx = 0
			}
			start := base + offset + idx
			out = append(out, splitOversizedSpan(sent, start, maxChars)...)
			offset += idx + len(sent)
		}
		return out
	}
	return splitWordsSpan(s, base, maxChars)
}

func splitSentences(s string) []string {
	parts := sentenceSplit.Split(s, -1)
	seps := sentenceSplit.FindAllString(s, -1)
	var out []string
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i < len(seps) {
			out = append(out, p+seps[i])
		} else {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{s}
	}
	return out
}

func splitWordsSpan(s string, base int, maxChars int) []paragraphSpan {
	var out []paragraphSpan
	cursor := 0
	lineStart := 0
	lineLen := 0
	flush := func(end int) {
		if end > lineStart {
			out = append(out, paragraphSpan{text: s[lineStart:end], start: base + lineStart, end: base + end})
		}
	}
	for cursor < len(s) {
		wordEnd := strings.IndexByte(s[cursor:], ' ')
		var word string
		if wordEnd < 0 {
			word = s[cursor:]
		} else {
			word = s[cursor : cursor+wordEnd]
		}
		extra := len(word)
		if lineLen > 0 {
			extra++
		}
		if lineLen > 0 && lineLen+extra > maxChars {
			flush(cursor)
			lineStart = cursor
			lineLen = 0
		}
		lineLen += len(word)
		if wordEnd < 0 {
			cursor = len(s)
		} else {
			cursor += wordEnd + 1
			lineLen++
		}
	}
	flush(len(s))
	if len(out) == 0 {
		return []paragraphSpan{{text: s, start: base, end: base + len(s)}}
	}
	return out
}
