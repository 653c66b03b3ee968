// Package ragpipeline implements C14: orchestrating query processing,
// semantic search, context building, and response generation behind a
// single entry point, with cache consultation and source attribution.
package ragpipeline

import (
	"context"
	"time"

	"planrag/internal/cache"
	"planrag/internal/contextbuild"
	"planrag/internal/domain"
	"planrag/internal/embed"
	"planrag/internal/generate"
	"planrag/internal/llm"
	"planrag/internal/query"
	"planrag/internal/rerr"
	"planrag/internal/search"
	"planrag/internal/vectorstore"
)

// CanonicalNoInfoAnswer is returned verbatim when retrieval finds nothing
// above threshold; it doubles as one of generate's uncertainty phrases so
// confidence scoring treats it consistently wherever it appears.
const CanonicalNoInfoAnswer = "No tengo suficiente información en los planes de gobierno disponibles para responder esa pregunta."

// MaxQuestionLength bounds a question per the InvalidInput boundary case.
const MaxQuestionLength = 2000

// PartyLookup resolves recognized party identifiers, used both to turn
// query-processor entities into an implicit filter and to render citation
// headers/titles in the context builder.
type PartyLookup interface {
	contextbuild.DocumentTitles
	ResolveEntities(entities []string) []string
}

// Pipeline bundles the providers and stores C14 orchestrates. Constructed
// once at startup and shared by the HTTP handlers and the comparison
// service; Pipeline itself holds no per-request mutable state.
type Pipeline struct {
	Embedder    embed.Provider
	LLM         llm.Provider
	VectorStore vectorstore.Store
	Cache       cache.Store
	Parties     PartyLookup

	TopKDefault         int
	SimilarityThreshold float64
	ContextReserve      int // system-prompt reserve, in tokens
	OutputReserve       int // expected output allocation, in tokens
	DefaultTTL          time.Duration
}

// Options overrides Pipeline's defaults for a single query. TopK < 0 means
// "unspecified, use Pipeline.TopKDefault"; TopK == 0 explicitly skips
// retrieval and returns the canonical no-info response.
type Options struct {
	PartyFilter string
	TopK        int
	MinScore    float64
}

// Response is C14's assembled output.
type Response struct {
	Answer     string          `json:"answer"`
	Sources    []domain.Source `json:"sources"`
	Confidence float64         `json:"confidence"`
	Metadata   Metadata        `json:"metadata"`
}

// Metadata is the per-query diagnostic envelope.
type Metadata struct {
	ChunksRetrieved  int    `json:"chunksRetrieved"`
	ChunksUsed       int    `json:"chunksUsed"`
	Model            string `json:"model"`
	TokensUsed       int    `json:"tokensUsed,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	Cached           bool   `json:"cached"`
}

// Query runs the full C10->C11->C12->C13 sequence with cache consultation,
// per §4.14's numbered steps. Failure at any stage returns a typed error;
// partial results are never returned.
func (p *Pipeline) Query(ctx context.Context, question string, opt Options) (Response, error) {
	started := time.Now()

	if len(question) == 0 {
		return Response{}, rerr.New(rerr.KindInvalidInput, "question must not be empty")
	}
	if len(question) > MaxQuestionLength {
		return Response{}, rerr.New(rerr.KindInvalidInput, "question exceeds maximum length of %d", MaxQuestionLength)
	}

	// TopK < 0 means "not specified by the caller": resolve the default.
	// TopK == 0 is the explicit "skip retrieval" boundary case.
	topK := opt.TopK
	if topK < 0 {
		topK = p.topKOrDefault()
	}
	threshold := opt.MinScore
	if threshold == 0 {
		threshold = p.thresholdOrDefault()
	}

	normalized := cache.NormalizeQuestion(question)
	key := cache.DeriveChatKey(normalized, opt.PartyFilter, topK, threshold)
	if entry, hit, err := p.Cache.Get(ctx, key.QuestionHash, key.ParamsHash); err == nil && hit && !entry.Expired(time.Now()) {
		return Response{
			Answer:     entry.Answer,
			Sources:    entry.Sources,
			Confidence: confidenceFromCachedAnswer(entry),
			Metadata: Metadata{
				Model:            entry.Model,
				TokensUsed:       entry.TokensUsed,
				ProcessingTimeMs: time.Since(started).Milliseconds(),
				Cached:           true,
			},
		}, nil
	}

	if topK == 0 {
		return noInfoResponse(started), nil
	}

	enhanced := query.Process(ctx, p.LLM, question)

	partyFilter := opt.PartyFilter
	var filters map[string]string
	if partyFilter != "" {
		filters = map[string]string{"party": partyFilter}
	} else if recognized := p.Parties.ResolveEntities(enhanced.Entities); len(recognized) == 1 {
		// only an unambiguous single match is applied implicitly; a
		// multi-party match is left to the comparison/no-filter path.
		filters = map[string]string{"party": recognized[0]}
	}

	results, err := search.Search(ctx, p.Embedder, p.VectorStore, enhanced.EnhancedQuery, topK, filters, threshold)
	if err != nil {
		return Response{}, err
	}
	if len(results) == 0 {
		return noInfoResponse(started), nil
	}

	budget := p.LLM.ContextWindow() - p.contextReserveOrDefault() - p.outputReserveOrDefault()
	if budget < 0 {
		budget = 0
	}
	built := contextbuild.Build(results, p.Parties, budget)

	genResult, err := generate.Generate(ctx, p.LLM, built.Context, question, generate.Options{})
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Answer:     genResult.Answer,
		Sources:    built.Citations,
		Confidence: genResult.Confidence,
		Metadata: Metadata{
			ChunksRetrieved:  len(results),
			ChunksUsed:       len(built.Citations),
			Model:            p.LLM.ModelName(),
			TokensUsed:       genResult.Usage.TotalTokens,
			ProcessingTimeMs: time.Since(started).Milliseconds(),
			Cached:           false,
		},
	}

	ttl := p.DefaultTTL
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_ = p.Cache.Put(ctx, key.QuestionHash, key.ParamsHash, domain.CacheEntry{
		QuestionHash: key.QuestionHash,
		ParamsHash:   key.ParamsHash,
		Question:     question,
		PartyFilter:  partyFilter,
		Answer:       resp.Answer,
		Sources:      resp.Sources,
		Model:        resp.Metadata.Model,
		TokensUsed:   resp.Metadata.TokensUsed,
		ComputedAt:   time.Now(),
		ExpiresAt:    expiresAt,
	}, ttlPtr(ttl))

	return resp, nil
}

func ttlPtr(d time.Duration) *time.Duration {
	if d <= 0 {
		return nil
	}
	return &d
}

func noInfoResponse(started time.Time) Response {
	return Response{
		Answer:     CanonicalNoInfoAnswer,
		Sources:    nil,
		Confidence: 0,
		Metadata: Metadata{
			ProcessingTimeMs: time.Since(started).Milliseconds(),
			Cached:           false,
		},
	}
}

func confidenceFromCachedAnswer(entry domain.CacheEntry) float64 {
	if entry.Answer == CanonicalNoInfoAnswer {
		return 0
	}
	// Cached responses don't retain their original confidence score
	// verbatim in this minimal entry shape; recomputing from the stored
	// answer length and whether sources were stored keeps the contract
	// (a number in [0,1]) without a schema change to CacheEntry.
	score := 0.5
	if len(entry.Answer) > 200 {
		score += 0.1
	}
	if len(entry.Sources) > 0 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (p *Pipeline) topKOrDefault() int {
	if p.TopKDefault > 0 {
		return p.TopKDefault
	}
	return search.DefaultTopK
}

func (p *Pipeline) thresholdOrDefault() float64 {
	if p.SimilarityThreshold > 0 {
		return p.SimilarityThreshold
	}
	return search.DefaultThreshold
}

func (p *Pipeline) contextReserveOrDefault() int {
	if p.ContextReserve > 0 {
		return p.ContextReserve
	}
	return 1500
}

func (p *Pipeline) outputReserveOrDefault() int {
	if p.OutputReserve > 0 {
		return p.OutputReserve
	}
	return 1000
}
