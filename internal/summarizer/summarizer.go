package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"

	defaultMaxTokens int64 = 512
	maxInputRunes          = 12000

	systemPrompt = `You write short summaries of news articles for busy readers who decide from the summary whether the article is worth opening.

Rules:
- Summary: 2-4 sentences, neutral tone, keep key facts (names, numbers, dates).
- Tags: 1-5 topic tags, each 1-3 words, no duplicates or synonyms (e.g. Artificial Intelligence, Startups, Finance, Security, Open Source).
- Write in the same language as the article.
- Output only a JSON object, nothing else:

` + "```json" + `
{"summary": "The summary of the article", "tags": ["tag1", "tag2"]}
` + "```"
)

// ErrInvalidInput is returned before any provider call when the input text
// cannot be summarized.
var ErrInvalidInput = errors.New("invalid input")

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the plain article text to summarise. Required.
	Text string
	// Title and SourceURL are optional context for the model.
	Title     string
	SourceURL string
}

// Result always carries both fields; a degraded model answer yields an empty
// summary or no tags rather than an error.
type Result struct {
	Summary string
	Tags    []string
}

// Summarizer produces a summary and tags for one article text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (Result, error)
}

// ProviderError wraps failures of the LLM call itself: transport, auth, rate
// limit, truncated or unparseable output.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider (model = %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	MaxTokens int64
	APIKey    string
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// New builds the summarizer for cfg.Provider.
func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAISummarizer(cfg)
	case ProviderOpenRouter:
		return NewOpenRouterSummarizer(cfg)
	case ProviderAnthropic:
		return NewAnthropicSummarizer(cfg)
	default:
		return nil, fmt.Errorf(
			"unknown provider: %q (valid: %s, %s, %s)",
			cfg.Provider,
			ProviderOpenAI,
			ProviderOpenRouter,
			ProviderAnthropic,
		)
	}
}

func (c Config) withDefaults(defaultModel string) (Config, error) {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return c, errors.New("API key is empty")
	}

	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModel
	}

	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}

	c.BaseURL = strings.TrimSpace(c.BaseURL)

	return c, nil
}

func validateInput(input Input) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}

	return text, nil
}

func buildUserPrompt(input Input, text string) string {
	runes := []rune(text)
	if len(runes) > maxInputRunes {
		text = string(runes[:maxInputRunes])
	}

	userPromptBuilder := strings.Builder{}
	if title := strings.TrimSpace(input.Title); title != "" {
		userPromptBuilder.WriteString("Title:\n")
		userPromptBuilder.WriteString(title)
		userPromptBuilder.WriteString("\n")
	}
	if sourceURL := strings.TrimSpace(input.SourceURL); sourceURL != "" {
		userPromptBuilder.WriteString("Source:\n")
		userPromptBuilder.WriteString(sourceURL)
		userPromptBuilder.WriteString("\n")
	}
	userPromptBuilder.WriteString("Content:\n")
	userPromptBuilder.WriteString(text)

	return userPromptBuilder.String()
}
