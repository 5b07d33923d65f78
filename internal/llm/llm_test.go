package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Summary string `json:"summary"`
	Found   *bool  `json:"found"`
	Items   []int  `json:"items"`
}

func TestDecodeRecoversWrappedPayload(t *testing.T) {
	t.Parallel()

	const payload = `{"summary":"ok {nested}","found":true,"items":[1,2]}`
	var want sample
	require.NoError(t, json.Unmarshal([]byte(payload), &want))

	tests := []struct {
		name  string
		reply string
	}{
		{name: "bare", reply: payload},
		{name: "json fence", reply: "```json\n" + payload + "\n```"},
		{name: "plain fence", reply: "```\n" + payload + "\n```"},
		{name: "leading prose", reply: "Here is the report:\n" + payload},
		{name: "surrounding prose", reply: "Sure! " + payload + " Let me know if you need more."},
		{name: "fence and prose", reply: "Result below.\n```json\n" + payload + "\n```\nThanks."},
		{name: "whitespace", reply: "\n\n   " + payload + "   \n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got sample
			require.NoError(t, Decode(tt.reply, &got))
			require.Equal(t, want, got)
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
	}{
		{name: "prose only", reply: "I could not analyze this website."},
		{name: "empty", reply: ""},
		{name: "broken object", reply: `{"summary": "unterminated`},
		{name: "reversed braces", reply: "} nothing here {"},
		{name: "wrong type", reply: `{"items": "not a list"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got sample
			err := Decode(tt.reply, &got)
			require.ErrorIs(t, err, ErrNoStructuredPayload)
			require.Greater(t, len(err.Error()), len(ErrNoStructuredPayload.Error()))
		})
	}
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("X-Api-Key") != "test-key" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "{\"summary\":"},
				{"type": "text", "text": "\"hi\"}"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	t.Cleanup(srv.Close)

	client := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "claude-test"}, nil)
	reply, err := client.Complete(context.Background(), "hello", 256)
	require.NoError(t, err)
	require.Equal(t, `{"summary":"hi"}`, reply)
	require.Equal(t, "claude-test", gotBody["model"])
	require.EqualValues(t, 256, gotBody["max_tokens"])
}

func TestAnthropicCompleteErrors(t *testing.T) {
	t.Parallel()

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
		}))
		t.Cleanup(srv.Close)

		client := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
		_, err := client.Complete(context.Background(), "hello", 16)
		require.Error(t, err)
	})

	t.Run("no text", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"max_tokens","usage":{"input_tokens":1,"output_tokens":0}}`))
		}))
		t.Cleanup(srv.Close)

		client := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
		_, err := client.Complete(context.Background(), "hello", 16)
		require.ErrorIs(t, err, ErrEmptyReply)
	})
}
