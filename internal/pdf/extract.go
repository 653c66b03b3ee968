package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	ledongthucpdf "github.com/ledongthuc/pdf"

	"planrag/internal/objectstore"
	"planrag/internal/rerr"
)

// PageOffset is one entry of the pageIndex side-channel §4.6 describes:
// the byte offset in cleaned_text at which page_number begins.
type PageOffset struct {
	TextOffset int
	PageNumber int
}

// ExtractResult is C6's output: cleaned text plus the page index needed to
// attach page numbers to chunks later.
type ExtractResult struct {
	CleanedText string
	PageIndex   []PageOffset
	PageCount   int
}

const pageMarkerSentinel = "-- %d of %d --"

var pageMarkerPattern = regexp.MustCompile(`-- (\d+) of (\d+) --`)

// Extract reads docKey (a PDF) from store, extracts per-page text, and
// returns cleaned text with a page index. Fails with rerr.ErrParseFailed on
// an unreadable PDF; the ingestion pipeline must not partial-persist.
func Extract(ctx context.Context, store objectstore.ObjectStore, docKey string) (ExtractResult, error) {
	rc, _, err := store.Get(ctx, docKey)
	if err != nil {
		return ExtractResult{}, rerr.Wrap(err, rerr.ErrParseFailed, "reading %s", docKey)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return ExtractResult{}, rerr.Wrap(err, rerr.ErrParseFailed, "reading %s", docKey)
	}
	return ExtractBytes(body)
}

// ExtractBytes runs the C6 algorithm against in-memory PDF bytes.
func ExtractBytes(body []byte) (ExtractResult, error) {
	reader, err := ledongthucpdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return ExtractResult{}, rerr.Wrap(err, rerr.ErrParseFailed, "opening pdf reader")
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return ExtractResult{}, rerr.New(rerr.KindParseFailed, "pdf has no pages")
	}

	var withMarkers strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // a single unreadable page is skipped, not fatal
		}
		withMarkers.WriteString(fmt.Sprintf(pageMarkerSentinel, i, numPages))
		withMarkers.WriteByte('\n')
		withMarkers.WriteString(text)
		withMarkers.WriteString("\n\n")
	}
	if withMarkers.Len() == 0 {
		return ExtractResult{}, rerr.New(rerr.KindParseFailed, "no extractable text in pdf")
	}

	fixed := fixEncoding(withMarkers.String())
	collapsed := collapseWhitespace(fixed)
	cleaned, pageIndex := stripPageMarkers(collapsed)

	return ExtractResult{CleanedText: cleaned, PageIndex: pageIndex, PageCount: numPages}, nil
}

// stripPageMarkers removes the "-- N of M --" sentinels inserted by Extract,
// recording their byte offsets (in the post-strip text) into pageIndex.
func stripPageMarkers(text string) (string, []PageOffset) {
	var out strings.Builder
	var index []PageOffset
	last := 0
	for _, loc := range pageMarkerPattern.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(text[last:loc[0]])
		pageNum := atoiSafe(text[loc[2]:loc[3]])
		// trim a single trailing newline after the marker, if present
		end := loc[1]
		if end < len(text) && text[end] == '\n' {
			end++
		}
		index = append(index, PageOffset{TextOffset: out.Len(), PageNumber: pageNum})
		last = end
	}
	out.WriteString(text[last:])
	return out.String(), index
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// PageForOffset returns the page number (or 0 if unknown) covering byte
// offset off in cleaned_text, per the index built by Extract.
func PageForOffset(index []PageOffset, off int) int {
	page := 0
	for _, p := range index {
		if p.TextOffset > off {
			break
		}
		page = p.PageNumber
	}
	return page
}
