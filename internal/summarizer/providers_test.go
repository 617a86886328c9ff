package summarizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"newsrelay/internal/summarizer"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelOutput = "```json\n{\"summary\": \"Company X raised $10M.\", \"tags\": [\"funding\", \"startup\"]}\n```"

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func responsesBody(status string, reason string, text string) map[string]any {
	body := map[string]any{
		"id":         "resp_test",
		"object":     "response",
		"created_at": 0,
		"status":     status,
		"model":      "gpt-4o-mini",
		"output": []map[string]any{
			{
				"type":   "message",
				"id":     "msg_test",
				"status": "completed",
				"role":   "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": text, "annotations": []any{}},
				},
			},
		},
	}

	if reason != "" {
		body["incomplete_details"] = map[string]any{"reason": reason}
	}

	return body
}

func TestOpenAISummarizer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/responses")
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.Contains(t, req["input"], "Company X raised $10M in funding.")

		writeJSON(t, w, responsesBody("completed", "", modelOutput))
	}))
	defer ts.Close()

	s, err := summarizer.NewOpenAISummarizer(summarizer.Config{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	result, err := s.Summarize(context.Background(), summarizer.Input{
		Text:      "Company X raised $10M in funding.",
		SourceURL: "https://example.com/x",
	})
	require.NoError(t, err)
	assert.Equal(t, "Company X raised $10M.", result.Summary)
	assert.Equal(t, []string{"funding", "startup"}, result.Tags)
}

func TestOpenAISummarizerGrowsOutputBudget(t *testing.T) {
	var (
		mu     sync.Mutex
		tokens []float64
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		tokens = append(tokens, req["max_output_tokens"].(float64))
		calls := len(tokens)
		mu.Unlock()

		if calls == 1 {
			writeJSON(t, w, responsesBody("incomplete", "max_output_tokens", ""))
			return
		}
		writeJSON(t, w, responsesBody("completed", "", modelOutput))
	}))
	defer ts.Close()

	s, err := summarizer.NewOpenAISummarizer(summarizer.Config{
		APIKey:    "test-key",
		BaseURL:   ts.URL,
		MaxTokens: 100,
	})
	require.NoError(t, err)

	result, err := s.Summarize(context.Background(), summarizer.Input{Text: "text"})
	require.NoError(t, err)
	assert.Equal(t, "Company X raised $10M.", result.Summary)
	assert.Equal(t, []float64{100, 200}, tokens)
}

func TestOpenAISummarizerUnparseableOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, responsesBody("completed", "", "Sorry, I can't help with that."))
	}))
	defer ts.Close()

	s, err := summarizer.NewOpenAISummarizer(summarizer.Config{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), summarizer.Input{Text: "text"})

	var providerErr *summarizer.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, summarizer.ProviderOpenAI, providerErr.Provider)
}

func TestOpenRouterSummarizer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chat/completions")

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google/gemini-flash-1.5", req["model"])

		writeJSON(t, w, map[string]any{
			"id":      "chatcmpl_test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "google/gemini-flash-1.5",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": modelOutput},
				},
			},
		})
	}))
	defer ts.Close()

	s, err := summarizer.NewOpenRouterSummarizer(summarizer.Config{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	result, err := s.Summarize(context.Background(), summarizer.Input{Text: "Company X raised $10M in funding."})
	require.NoError(t, err)
	assert.Equal(t, "Company X raised $10M.", result.Summary)
	assert.Equal(t, []string{"funding", "startup"}, result.Tags)
}

func TestOpenRouterSummarizerAuthFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid key", "code": 401}}`))
	}))
	defer ts.Close()

	s, err := summarizer.NewOpenRouterSummarizer(summarizer.Config{APIKey: "bad-key", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), summarizer.Input{Text: "text"})

	var providerErr *summarizer.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, summarizer.ProviderOpenRouter, providerErr.Provider)
}

func TestAnthropicSummarizer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-haiku-4-5-20251001", req["model"])

		writeJSON(t, w, map[string]any{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": modelOutput},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer ts.Close()

	s, err := summarizer.NewAnthropicSummarizer(summarizer.Config{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	result, err := s.Summarize(context.Background(), summarizer.Input{Text: "Company X raised $10M in funding."})
	require.NoError(t, err)
	assert.Equal(t, "Company X raised $10M.", result.Summary)
	assert.Equal(t, []string{"funding", "startup"}, result.Tags)
}

func TestAnthropicSummarizerServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s, err := summarizer.NewAnthropicSummarizer(summarizer.Config{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), summarizer.Input{Text: "text"})

	var providerErr *summarizer.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, summarizer.ProviderAnthropic, providerErr.Provider)
}

func TestSummarizeEmptyInputForEveryProvider(t *testing.T) {
	var calls int
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	for _, provider := range []string{
		summarizer.ProviderOpenAI,
		summarizer.ProviderOpenRouter,
		summarizer.ProviderAnthropic,
	} {
		t.Run(provider, func(t *testing.T) {
			s, err := summarizer.New(summarizer.Config{
				Provider: provider,
				APIKey:   "test-key",
				BaseURL:  ts.URL,
			})
			require.NoError(t, err)

			for _, text := range []string{"", "  \n\t "} {
				_, err = s.Summarize(context.Background(), summarizer.Input{Text: text})
				assert.True(t, errors.Is(err, summarizer.ErrInvalidInput), "got %v", err)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls, "invalid input must not reach the provider")
}

func TestNew(t *testing.T) {
	_, err := summarizer.New(summarizer.Config{Provider: "gemini", APIKey: "k"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown provider"))

	_, err = summarizer.New(summarizer.Config{Provider: summarizer.ProviderOpenAI})
	require.Error(t, err, "missing API key must be rejected")

	s, err := summarizer.New(summarizer.Config{Provider: " OpenRouter ", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &summarizer.OpenRouterSummarizer{}, s)
}
