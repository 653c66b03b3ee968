package pdf

import "testing"

func TestFixEncodingRepairsMojibake(t *testing.T) {
	in := "la educaci\xc3\x83\xb3n y la salud p\xc3\x83\xbablica"
	got := fixEncoding(in)
	want := "la educación y la salud pública"
	if got != want {
		t.Fatalf("fixEncoding(%q) = %q, want %q", in, got, want)
	}
}

func TestFixEncodingRepairsLigatureColon(t *testing.T) {
	got := fixEncoding("informa:on")
	if got != "information" {
		t.Fatalf("ligature fix produced %q, want %q", got, "information")
	}
}

func TestFixEncodingDoesNotTouchTimeExpressions(t *testing.T) {
	got := fixEncoding("la reunion es a las 14:30 horas")
	if got != "la reunion es a las 14:30 horas" {
		t.Fatalf("digit-adjacent colon must survive untouched, got %q", got)
	}
}

func TestCollapseWhitespaceCollapsesSpacesAndNewlines(t *testing.T) {
	in := "uno   dos\n\n\n\n\ntres"
	got := collapseWhitespace(in)
	want := "uno dos\n\ntres"
	if got != want {
		t.Fatalf("collapseWhitespace(%q) = %q, want %q", in, got, want)
	}
}

func TestStripPageMarkersBuildsPageIndex(t *testing.T) {
	text := "-- 1 of 2 --\nhola\n\n-- 2 of 2 --\nmundo\n\n"
	cleaned, index := stripPageMarkers(text)
	if cleaned != "hola\n\nmundo\n\n" {
		t.Fatalf("unexpected cleaned text: %q", cleaned)
	}
	if len(index) != 2 || index[0].PageNumber != 1 || index[1].PageNumber != 2 {
		t.Fatalf("unexpected page index: %+v", index)
	}
	if index[0].TextOffset != 0 {
		t.Fatalf("first page must start at offset 0, got %d", index[0].TextOffset)
	}
}

func TestPageForOffsetResolvesLatestPageAtOrBeforeOffset(t *testing.T) {
	index := []PageOffset{{TextOffset: 0, PageNumber: 1}, {TextOffset: 10, PageNumber: 2}}
	if got := PageForOffset(index, 5); got != 1 {
		t.Fatalf("expected page 1 at offset 5, got %d", got)
	}
	if got := PageForOffset(index, 12); got != 2 {
		t.Fatalf("expected page 2 at offset 12, got %d", got)
	}
	if got := PageForOffset(nil, 0); got != 0 {
		t.Fatalf("expected page 0 for empty index, got %d", got)
	}
}
