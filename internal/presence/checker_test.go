package presence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-audit/internal/llm"
)

type fakeCompleter struct {
	reply     string
	err       error
	prompt    string
	maxTokens int64
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, maxTokens int64) (string, error) {
	f.prompt = prompt
	f.maxTokens = maxTokens
	return f.reply, f.err
}

func TestCheck(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{reply: "```json\n" + `{
		"summary": " Partially visible ",
		"foundInChatGPT": true,
		"foundInGemini": false,
		"foundInPerplexity": null,
		"details": "Mentioned in one answer."
	}` + "\n```"}
	checker := New(Config{Language: "Hebrew"}, fake, nil)

	got, err := checker.Check(context.Background(), "Acme Bakery", "https://acme.example")
	require.NoError(t, err)
	require.Equal(t, "Partially visible", got.Summary)
	require.NotNil(t, got.FoundInChatGPT)
	require.True(t, *got.FoundInChatGPT)
	require.NotNil(t, got.FoundInGemini)
	require.False(t, *got.FoundInGemini)
	require.Nil(t, got.FoundInPerplexity)

	require.Equal(t, int64(defaultMaxTokens), fake.maxTokens)
	require.Contains(t, fake.prompt, `"Acme Bakery"`)
	require.Contains(t, fake.prompt, "https://acme.example")
	require.Contains(t, fake.prompt, "Hebrew")
}

func TestCheckErrors(t *testing.T) {
	t.Parallel()

	callErr := errors.New("rate limited")

	tests := []struct {
		name   string
		fake   *fakeCompleter
		target error
	}{
		{name: "call fails", fake: &fakeCompleter{err: callErr}, target: callErr},
		{name: "prose reply", fake: &fakeCompleter{reply: "I cannot browse the web."}, target: llm.ErrNoStructuredPayload},
		{name: "wrong type", fake: &fakeCompleter{reply: `{"summary":"x","foundInChatGPT":"yes"}`}, target: llm.ErrNoStructuredPayload},
		{name: "empty object", fake: &fakeCompleter{reply: `{}`}, target: ErrEmptyResult},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(Config{MaxTokens: 64}, tt.fake, nil).Check(context.Background(), "b", "https://b.example")
			require.ErrorIs(t, err, tt.target)
		})
	}
}
