package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"

	maxOutputTokensGrowthFactor = 4
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client               openai.Client
	model                string
	baseMaxOutputTokens  int64
	limitMaxOutputTokens int64
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(cfg Config) (*OpenAISummarizer, error) {
	cfg, err := cfg.withDefaults(defaultOpenAIModel)
	if err != nil {
		return nil, fmt.Errorf("configure %s: %w", ProviderOpenAI, err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAISummarizer{
		client:               openai.NewClient(opts...),
		model:                cfg.Model,
		baseMaxOutputTokens:  cfg.MaxTokens,
		limitMaxOutputTokens: cfg.MaxTokens * maxOutputTokensGrowthFactor,
	}, nil
}

// Summarize retries with a larger output budget when the model stops on
// max_output_tokens, up to four times the configured bound.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (Result, error) {
	text, err := validateInput(input)
	if err != nil {
		return Result{}, err
	}

	userPrompt := buildUserPrompt(input, text)

	maxOutputTokens := s.baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           s.model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPrompt),
			},
		})
		if err != nil {
			return Result{}, s.providerError(fmt.Errorf("do request: %w", err))
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < s.limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, s.limitMaxOutputTokens)
				continue
			}
			return Result{}, s.providerError(fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			))
		}

		output := strings.TrimSpace(resp.OutputText())
		if output == "" {
			return Result{}, s.providerError(fmt.Errorf("output text is missing (status = %s)", resp.Status))
		}

		result, err := parseOutput(output)
		if err != nil {
			return Result{}, s.providerError(fmt.Errorf("parse output: %w", err))
		}

		return result, nil
	}
}

func (s *OpenAISummarizer) providerError(err error) error {
	return &ProviderError{Provider: ProviderOpenAI, Model: s.model, Err: err}
}
