package chunk

import (
	"strings"
	"testing"

	"planrag/internal/pdf"
)

func paragraphText(paragraphs int, wordsPerParagraph int) string {
	var b strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		for w := 0; w < wordsPerParagraph; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("palabra")
		}
	}
	return b.String()
}

func TestSplitRespectsHardMaximum(t *testing.T) {
	text := paragraphText(20, 50)
	opt := Options{TargetTokens: 100, MaxTokens: 150, OverlapTokens: 20}
	chunks := Split(text, nil, opt)
	maxChars := tokensToChars(opt.MaxTokens)
	for _, c := range chunks {
		if len(c.Text) > maxChars+tokensToChars(opt.OverlapTokens) {
			t.Fatalf("chunk %d length %d exceeds hard maximum %d by more than overlap allowance", c.Index, len(c.Text), maxChars)
		}
	}
}

func TestSplitCoversTextInOrderWithNoGaps(t *testing.T) {
	text := paragraphText(10, 30)
	chunks := Split(text, nil, DefaultOptions())
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].StartOffset != 0 {
		t.Fatalf("first chunk must start at offset 0, got %d", chunks[0].StartOffset)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset > chunks[i-1].EndOffset {
			t.Fatalf("gap between chunk %d (end %d) and chunk %d (start %d)", i-1, chunks[i-1].EndOffset, i, chunks[i].StartOffset)
		}
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(text) {
		t.Fatalf("last chunk must reach end of text: got end %d, want %d", last.EndOffset, len(text))
	}
}

func TestSplitProducesOverlapBetweenConsecutiveChunks(t *testing.T) {
	text := paragraphText(30, 40)
	opt := Options{TargetTokens: 50, MaxTokens: 80, OverlapTokens: 20}
	chunks := Split(text, nil, opt)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset >= chunks[i-1].EndOffset {
			t.Fatalf("expected chunk %d to start before chunk %d's end (overlap), got start %d >= end %d", i, i-1, chunks[i].StartOffset, chunks[i-1].EndOffset)
		}
	}
}

func TestSplitSplitsOversizedParagraphAtSentenceBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Esta es una oracion de prueba numero ")
		b.WriteString(strings.Repeat("x", 3))
		b.WriteString(". ")
	}
	opt := Options{TargetTokens: 20, MaxTokens: 30, OverlapTokens: 5}
	chunks := Split(b.String(), nil, opt)
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized paragraph to be split into multiple chunks, got %d", len(chunks))
	}
}

func TestSplitAttachesPageNumbers(t *testing.T) {
	text := "primer parrafo de la pagina uno\n\nsegundo parrafo ya en la pagina dos"
	pageIndex := []pdf.PageOffset{{TextOffset: 0, PageNumber: 1}, {TextOffset: 34, PageNumber: 2}}
	chunks := Split(text, pageIndex, Options{TargetTokens: 1000, MaxTokens: 2000, OverlapTokens: 0})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].PageNumber != 1 {
		t.Fatalf("expected chunk to start on page 1, got %d", chunks[0].PageNumber)
	}
}

func TestSplitEmptyTextProducesNoChunks(t *testing.T) {
	if chunks := Split("", nil, DefaultOptions()); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}
