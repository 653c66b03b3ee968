package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicCompleteEchoesLastUserMessage(t *testing.T) {
	p := NewDeterministic(4096, nil)
	content, usage, finish, err := p.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "eres un asistente"},
		{Role: RoleUser, Content: "hola"},
	}, Options{})
	require.NoError(t, err)
	require.Contains(t, content, "hola")
	require.Equal(t, FinishStop, finish)
	require.Greater(t, usage.TotalTokens, 0)
}

func TestDeterministicStreamTerminatesWithDone(t *testing.T) {
	p := NewDeterministic(4096, func([]Message) string { return "uno dos tres" })
	ch, err := p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
	require.NoError(t, err)
	var words []string
	var done bool
	for d := range ch {
		if d.Done {
			done = true
			continue
		}
		require.NoError(t, d.Err)
		words = append(words, d.Text)
	}
	require.True(t, done)
	require.Len(t, words, 3)
}

func TestDeterministicStreamStopsOnCancel(t *testing.T) {
	p := NewDeterministic(4096, func([]Message) string { return "a b c d e f g h" })
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Stream(ctx, []Message{{Role: RoleUser, Content: "x"}}, Options{})
	require.NoError(t, err)
	<-ch
	cancel()
	for range ch {
	}
}
