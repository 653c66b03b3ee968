package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"planrag/internal/config"
	"planrag/internal/observability"
	"planrag/internal/rerr"
)

// httpProvider calls a self-hosted OpenAI-shaped embeddings endpoint (e.g.
// Ollama, llama.cpp). It sends one text per request, matching the teacher's
// rationale: some local inference servers crash on batched embedding
// requests, so single-item calls plus a serializing mutex are the safe
// default.
type httpProvider struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
	dim        int

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewHTTP constructs a Provider for a locally hosted, OpenAI-shaped
// embeddings endpoint.
func NewHTTP(cfg config.EmbeddingConfig) Provider {
	return &httpProvider{
		cfg:        cfg,
		httpClient: observability.NewHTTPClient(nil),
		dim:        cfg.Dim,
	}
}

func (p *httpProvider) ModelName() string { return p.cfg.Model }
func (p *httpProvider) Dimension() int    { return p.dim }

func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, Usage, error) {
	vecs, usage, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, usage, err
	}
	return vecs[0], usage, nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{}, nil
	}
	var out [][]float32
	for _, t := range texts {
		if err := checkInputSize(t); err != nil {
			return nil, Usage{}, err
		}
		vec, err := p.call(ctx, []string{t})
		if err != nil {
			return out, Usage{}, err
		}
		out = append(out, vec...)
	}
	return out, Usage{}, nil
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *httpProvider) call(ctx context.Context, inputs []string) ([][]float32, error) {
	p.mu.Lock()
	if !p.lastCall.IsZero() {
		if elapsed := time.Since(p.lastCall); elapsed < p.minDelay {
			time.Sleep(p.minDelay - elapsed)
		}
	}
	p.lastCall = time.Now()
	defer p.mu.Unlock()

	body, _ := json.Marshal(embedReq{Model: p.cfg.Model, Input: inputs})
	url := p.cfg.BaseURL + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "building embeddings request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "embeddings endpoint unreachable")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, rerr.New(rerr.KindProviderUnavailable, "embeddings endpoint returned %s: %s", resp.Status, truncate(respBody, 200))
	}
	var er embedResp
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, rerr.Wrap(err, rerr.ErrProviderUnavailable, "parsing embeddings response: %s", truncate(respBody, 200))
	}
	if len(er.Data) != len(inputs) {
		return nil, rerr.New(rerr.KindProviderUnavailable, "unexpected embedding count: got %d, want %d", len(er.Data), len(inputs))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return fmt.Sprintf("%s", b)
}
