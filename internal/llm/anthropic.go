package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"planrag/internal/config"
	"planrag/internal/observability"
	"planrag/internal/rerr"
)

type anthropicProvider struct {
	sdk           anthropic.Client
	model         string
	contextWindow int
}

// NewAnthropic constructs a second concrete C2 implementation, proving the
// Provider abstraction named in spec §1/§9 is real rather than
// single-sourced. Grounded on the teacher's internal/llm/anthropic client
// wrapping style (SDK client over an otelhttp-traced http.Client).
func NewAnthropic(cfg config.LLMConfig) Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{
		sdk:           anthropic.NewClient(opts...),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
	}
}

func (p *anthropicProvider) ModelName() string            { return p.model }
func (p *anthropicProvider) ContextWindow() int            { return p.contextWindow }
func (p *anthropicProvider) SupportsFunctionCalling() bool { return true }

func splitSystem(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (p *anthropicProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, Usage, FinishReason, error) {
	system, rest := splitSystem(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, "", rerr.Wrap(err, rerr.ErrProviderUnavailable, "anthropic completion request failed")
	}
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	usage := Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	finish := FinishStop
	if resp.StopReason == "max_tokens" {
		finish = FinishLength
	}
	return content, usage, finish, nil
}

func (p *anthropicProvider) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Delta, error) {
	system, rest := splitSystem(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := p.sdk.Messages.NewStreaming(ctx, params)
	out := make(chan Delta)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text := delta.Delta.Text; text != "" {
					select {
					case out <- Delta{Text: text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- Delta{Err: rerr.Wrap(err, rerr.ErrProviderUnavailable, "anthropic stream failed")}:
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
