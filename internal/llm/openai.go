package llm

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"planrag/internal/config"
	"planrag/internal/observability"
	"planrag/internal/rerr"
)

type openAIProvider struct {
	client        openai.Client
	model         string
	contextWindow int
}

// NewOpenAI constructs a Provider backed by openai-go/v2, following the
// teacher's anthropic/openai client wrapping pattern: SDK client built with
// an otelhttp-instrumented http.Client so provider round-trips are traced
// the same way every other outbound call in this service is.
func NewOpenAI(cfg config.LLMConfig) Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIProvider{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
	}
}

func (p *openAIProvider) ModelName() string             { return p.model }
func (p *openAIProvider) ContextWindow() int             { return p.contextWindow }
func (p *openAIProvider) SupportsFunctionCalling() bool  { return true }

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (p *openAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, Usage, FinishReason, error) {
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if len(opts.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.Stop}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, "", rerr.Wrap(err, rerr.ErrProviderUnavailable, "openai completion request failed")
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, "", rerr.New(rerr.KindProviderUnavailable, "openai returned no choices")
	}
	choice := resp.Choices[0]
	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	finish := mapFinishReason(string(choice.FinishReason))
	if finish == FinishLength && len(choice.Message.Content) == 0 {
		return "", usage, finish, rerr.New(rerr.KindContextOverflow, "completion truncated with no output")
	}
	return choice.Message.Content, usage, finish, nil
}

func mapFinishReason(s string) FinishReason {
	switch s {
	case "length":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	default:
		return FinishStop
	}
}

func (p *openAIProvider) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Delta, error) {
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan Delta)
	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				select {
				case out <- Delta{Text: text}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- Delta{Err: rerr.Wrap(err, rerr.ErrProviderUnavailable, "openai stream failed")}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- Delta{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
