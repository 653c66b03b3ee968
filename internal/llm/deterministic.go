package llm

import (
	"context"
	"fmt"
	"strings"
)

// deterministicProvider is a canned-response stand-in for tests: it echoes
// the last user message with a fixed prefix, with no network dependency.
type deterministicProvider struct {
	contextWindow int
	respond       func(messages []Message) string
}

// NewDeterministic builds a Provider whose Complete/Stream calls respond
// by applying respond to the message list. If respond is nil, it echoes the
// last user message content.
func NewDeterministic(contextWindow int, respond func(messages []Message) string) Provider {
	if contextWindow <= 0 {
		contextWindow = 8192
	}
	if respond == nil {
		respond = func(messages []Message) string {
			for i := len(messages) - 1; i >= 0; i-- {
				if messages[i].Role == RoleUser {
					return fmt.Sprintf("respuesta simulada a: %s", messages[i].Content)
				}
			}
			return "respuesta simulada"
		}
	}
	return &deterministicProvider{contextWindow: contextWindow, respond: respond}
}

func (d *deterministicProvider) ModelName() string            { return "deterministic" }
func (d *deterministicProvider) ContextWindow() int            { return d.contextWindow }
func (d *deterministicProvider) SupportsFunctionCalling() bool { return false }

func (d *deterministicProvider) Complete(_ context.Context, messages []Message, _ Options) (string, Usage, FinishReason, error) {
	text := d.respond(messages)
	return text, Usage{PromptTokens: approxTokens(messages), CompletionTokens: approxTokensOf(text), TotalTokens: approxTokens(messages) + approxTokensOf(text)}, FinishStop, nil
}

func (d *deterministicProvider) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Delta, error) {
	text, _, _, _ := d.Complete(ctx, messages, opts)
	out := make(chan Delta)
	go func() {
		defer close(out)
		for _, word := range strings.Fields(text) {
			select {
			case out <- Delta{Text: word + " "}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- Delta{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func approxTokens(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += approxTokensOf(m.Content)
	}
	return n
}

func approxTokensOf(s string) int { return len(s)/4 + 1 }
