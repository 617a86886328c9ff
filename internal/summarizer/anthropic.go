package summarizer

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	stopReasonMaxTokens = "max_tokens"
)

// AnthropicSummarizer uses the Messages API.
type AnthropicSummarizer struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

func NewAnthropicSummarizer(cfg Config) (*AnthropicSummarizer, error) {
	cfg, err := cfg.withDefaults(defaultAnthropicModel)
	if err != nil {
		return nil, fmt.Errorf("configure %s: %w", ProviderAnthropic, err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicSummarizer{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (s *AnthropicSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (Result, error) {
	text, err := validateInput(input)
	if err != nil {
		return Result{}, err
	}

	msg, err := s.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildUserPrompt(input, text))),
		},
	})
	if err != nil {
		return Result{}, s.providerError(fmt.Errorf("create message: %w", err))
	}

	var outputBuilder strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		outputBuilder.WriteString(block.Text)
	}

	output := strings.TrimSpace(outputBuilder.String())
	if output == "" {
		return Result{}, s.providerError(fmt.Errorf("output text is missing (stopReason = %s)", msg.StopReason))
	}

	result, err := parseOutput(output)
	if err != nil {
		if msg.StopReason == stopReasonMaxTokens {
			err = fmt.Errorf("%w (output truncated at maxTokens = %d)", err, s.maxTokens)
		}
		return Result{}, s.providerError(fmt.Errorf("parse output: %w", err))
	}

	return result, nil
}

func (s *AnthropicSummarizer) providerError(err error) error {
	return &ProviderError{Provider: ProviderAnthropic, Model: s.model, Err: err}
}
