package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenRouterModel   = "google/gemini-flash-1.5"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	finishReasonLength = "length"
)

// OpenRouterSummarizer talks to OpenRouter's OpenAI compatible Chat
// Completions endpoint.
type OpenRouterSummarizer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenRouterSummarizer(cfg Config) (*OpenRouterSummarizer, error) {
	cfg, err := cfg.withDefaults(defaultOpenRouterModel)
	if err != nil {
		return nil, fmt.Errorf("configure %s: %w", ProviderOpenRouter, err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	return &OpenRouterSummarizer{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (s *OpenRouterSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (Result, error) {
	text, err := validateInput(input)
	if err != nil {
		return Result{}, err
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(input, text)),
		},
		MaxTokens: openai.Int(s.maxTokens),
	})
	if err != nil {
		return Result{}, s.providerError(fmt.Errorf("do request: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Result{}, s.providerError(errors.New("response has no choices"))
	}

	choice := resp.Choices[0]
	output := strings.TrimSpace(choice.Message.Content)
	if output == "" {
		return Result{}, s.providerError(fmt.Errorf("output text is missing (finishReason = %s)", choice.FinishReason))
	}

	result, err := parseOutput(output)
	if err != nil {
		if choice.FinishReason == finishReasonLength {
			err = fmt.Errorf("%w (output truncated at maxTokens = %d)", err, s.maxTokens)
		}
		return Result{}, s.providerError(fmt.Errorf("parse output: %w", err))
	}

	return result, nil
}

func (s *OpenRouterSummarizer) providerError(err error) error {
	return &ProviderError{Provider: ProviderOpenRouter, Model: s.model, Err: err}
}
