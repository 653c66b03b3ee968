// Package domain holds the core entities shared across the ingestion and
// query pipelines: parties, documents, chunks, and cached answers.
package domain

import "time"

// Party is a static reference entity maintained by an external collaborator.
// The core never creates or mutates parties; it only reads them by slug.
type Party struct {
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Abbreviation string         `json:"abbreviation"`
	ColorPrimary string         `json:"colorPrimary,omitempty"`
	ColorAccent  string         `json:"colorAccent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Document is one party's government plan.
type Document struct {
	ID           string         `json:"id"`
	PartySlug    string         `json:"partySlug"`
	SourceURL    string         `json:"sourceUrl"`
	StoragePath  string         `json:"-"`
	PageCount    int            `json:"pageCount"`
	ByteSize     int64          `json:"byteSize"`
	DownloadedAt time.Time      `json:"downloadedAt"`
	ParsedAt     time.Time      `json:"parsedAt"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// QualityBreakdown is the per-metric decomposition behind a Chunk's Quality score.
type QualityBreakdown struct {
	Length         float64
	SpecialCharInv float64
	HasKeywords    float64
	Readability    float64
}

// Overall recomputes the weighted combination described for C8: length 0.3,
// inverse special-char 0.3, has-keywords 0.2, readability 0.2.
func (b QualityBreakdown) Overall() float64 {
	hk := 0.0
	if b.HasKeywords != 0 {
		hk = 1.0
	}
	return clamp01(0.3*b.Length + 0.3*b.SpecialCharInv + 0.2*hk + 0.2*b.Readability)
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

// Chunk is a contiguous segment of one document's cleaned text, the unit of
// retrieval. Embedding is nil ("pending") until C1 has populated it; pending
// chunks are invisible to SimilaritySearch.
type Chunk struct {
	ID          string
	DocumentID  string
	ChunkIndex  int
	Text        string
	Embedding   []float32
	TokenCount  int
	CharCount   int
	PageNumber  int // 0 means absent
	PageRangeEnd int // >PageNumber when the chunk spans multiple pages, else 0
	Quality     QualityBreakdown
	Keywords    []string
	Entities    []string
	CreatedAt   time.Time
	Metadata    map[string]any
}

// HasPage reports whether PageNumber is populated.
func (c Chunk) HasPage() bool { return c.PageNumber > 0 }

// SpansPages reports whether the chunk crosses a page boundary.
func (c Chunk) SpansPages() bool { return c.PageRangeEnd > c.PageNumber }

// Source is a citation attached to a generated answer: a reference to the
// chunk that grounded part of the answer. Sources may outlive the chunks
// they cite; readers must tolerate broken references.
type Source struct {
	Party         string  `json:"party"`
	Document      string  `json:"document"`
	Page          int     `json:"page,omitempty"`
	Similarity    float64 `json:"similarity"`
	Snippet       string  `json:"snippet"`
	DocumentID    string  `json:"-"`
	ChunkID       string  `json:"-"`
}

// CacheEntry is an immutable record of a previously computed answer.
type CacheEntry struct {
	QuestionHash string
	ParamsHash   string
	Question     string
	PartyFilter  string
	Answer       string
	Sources      []Source
	Model        string
	TokensUsed   int
	ComputedAt   time.Time
	ExpiresAt    *time.Time
}

// Expired reports whether the entry's TTL has lapsed as of now.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
