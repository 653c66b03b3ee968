package embed

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"planrag/internal/config"
	"planrag/internal/observability"
	"planrag/internal/rerr"
)

// openAIProvider embeds via the OpenAI embeddings API.
type openAIProvider struct {
	client    openai.Client
	model     string
	dim       int
	batchSize int
}

// NewOpenAI constructs a Provider backed by openai-go/v2, following the
// teacher's pattern of wrapping the SDK client with an otelhttp-instrumented
// http.Client so provider calls are traced like every other outbound call.
func NewOpenAI(cfg config.EmbeddingConfig) Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dim:       cfg.Dim,
		batchSize: 100,
	}
}

func (p *openAIProvider) ModelName() string { return p.model }
func (p *openAIProvider) Dimension() int    { return p.dim }

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, Usage, error) {
	vecs, usage, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, usage, err
	}
	return vecs[0], usage, nil
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{}, nil
	}
	for _, t := range texts {
		if err := checkInputSize(t); err != nil {
			return nil, Usage{}, err
		}
	}
	var out [][]float32
	var usage Usage
	for _, batch := range batchSlices(texts, p.batchSize) {
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: p.model,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		})
		if err != nil {
			return out, usage, rerr.Wrap(err, rerr.ErrProviderUnavailable, "openai embeddings request failed")
		}
		if len(resp.Data) != len(batch) {
			return out, usage, rerr.New(rerr.KindProviderUnavailable, "openai returned %d embeddings for %d inputs", len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for i, f := range d.Embedding {
				vec[i] = float32(f)
			}
			out = append(out, vec)
		}
		usage.PromptTokens += int(resp.Usage.PromptTokens)
		usage.TotalTokens += int(resp.Usage.TotalTokens)
	}
	return out, usage, nil
}
