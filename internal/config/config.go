package config

import (
	"errors"
	"fmt"
	"newsrelay/internal/queue"
	"newsrelay/internal/scraper"
	"newsrelay/internal/summarizer"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Sources   []string `env:"SOURCES"   envDefault:"hackernews" envSeparator:","`
	FeedURLs  string   `env:"FEED_URLS"`
	NewsLimit int      `env:"NEWS_LIMIT" envDefault:"5"`

	SummaryProvider     string        `env:"SUMMARY_PROVIDER"      envDefault:"openai"`
	SummarizerModel     string        `env:"SUMMARIZER_MODEL"`
	SummarizerMaxTokens int64         `env:"SUMMARIZER_MAX_TOKENS" envDefault:"512"`
	SummarizerBaseURL   string        `env:"SUMMARIZER_BASE_URL"`
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey    string        `env:"OPENROUTER_API_KEY"`
	AnthropicAPIKey     string        `env:"ANTHROPIC_API_KEY"`
	SummaryAttempts     int           `env:"SUMMARY_ATTEMPTS"      envDefault:"1"`
	SummaryCacheSize    int           `env:"SUMMARY_CACHE_SIZE"    envDefault:"1000"`
	SummaryCacheTTL     time.Duration `env:"SUMMARY_CACHE_TTL"     envDefault:"24h"`
	Concurrency         int           `env:"CONCURRENCY"           envDefault:"4"`

	SlackWebhookURL  string        `env:"SLACK_WEBHOOK_URL"`
	TelegramToken    string        `env:"TELEGRAM_TOKEN"`
	TelegramChatIDs  []string      `env:"TELEGRAM_CHAT_IDS"  envSeparator:","`
	WebhookURLs      []string      `env:"WEBHOOK_URLS"       envSeparator:","`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL"  envDefault:"0s"`

	QueueType     string `env:"QUEUE_TYPE"      envDefault:"list"`
	QueueName     string `env:"QUEUE_NAME"      envDefault:"newsrelay:articles"`
	RedisQueueURL string `env:"REDIS_QUEUE_URL"`

	DBPath string `env:"DB_PATH" envDefault:"db.sqlite"`

	// Schedule is a cron spec; empty runs the pipeline once and exits.
	Schedule   string        `env:"SCHEDULE"`
	RunTimeout time.Duration `env:"RUN_TIMEOUT" envDefault:"15m"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SummarizerAPIKey returns the key of the selected provider.
func (c Config) SummarizerAPIKey() string {
	switch c.SummaryProvider {
	case summarizer.ProviderOpenAI:
		return c.OpenAIAPIKey
	case summarizer.ProviderOpenRouter:
		return c.OpenRouterAPIKey
	case summarizer.ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// FeedURLList extracts the RSS feed URLs from FEED_URLS.
func (c Config) FeedURLList() ([]string, error) {
	if strings.TrimSpace(c.FeedURLs) == "" {
		return nil, nil
	}
	return scraper.FeedURLs(c.FeedURLs)
}

func (c Config) Validate() error {
	var errs []error

	switch c.SummaryProvider {
	case summarizer.ProviderOpenAI, summarizer.ProviderOpenRouter, summarizer.ProviderAnthropic:
		if c.SummarizerAPIKey() == "" {
			errs = append(errs, fmt.Errorf("API key for provider %s is empty", c.SummaryProvider))
		}
	default:
		errs = append(errs, fmt.Errorf("SUMMARY_PROVIDER is unknown: %q", c.SummaryProvider))
	}

	if len(c.Sources) == 0 && strings.TrimSpace(c.FeedURLs) == "" {
		errs = append(errs, errors.New("SOURCES and FEED_URLS are empty"))
	}
	if _, err := c.FeedURLList(); err != nil {
		errs = append(errs, fmt.Errorf("FEED_URLS: %w", err))
	}

	if c.NewsLimit <= 0 {
		errs = append(errs, errors.New("NEWS_LIMIT must be positive"))
	}
	if c.SummarizerMaxTokens <= 0 {
		errs = append(errs, errors.New("SUMMARIZER_MAX_TOKENS must be positive"))
	}
	if c.SummaryAttempts <= 0 {
		errs = append(errs, errors.New("SUMMARY_ATTEMPTS must be positive"))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, errors.New("CONCURRENCY must be positive"))
	}
	if c.DispatchInterval < 0 {
		errs = append(errs, errors.New("DISPATCH_INTERVAL must not be negative"))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, errors.New("RUN_TIMEOUT must be positive"))
	}

	switch c.QueueType {
	case queue.TypeList:
	case queue.TypeRedis:
		if c.RedisQueueURL == "" {
			errs = append(errs, errors.New("REDIS_QUEUE_URL is required for redis queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUEUE_TYPE is unknown: %q", c.QueueType))
	}

	if c.TelegramToken != "" && len(c.TelegramChatIDs) == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_IDS is required with TELEGRAM_TOKEN"))
	}

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.Sources = trimAll(c.Sources)
	c.TelegramChatIDs = trimAll(c.TelegramChatIDs)
	c.WebhookURLs = trimAll(c.WebhookURLs)

	c.SummaryProvider = strings.ToLower(strings.TrimSpace(c.SummaryProvider))
	c.QueueType = strings.ToLower(strings.TrimSpace(c.QueueType))
	c.OpenAIAPIKey = strings.TrimSpace(c.OpenAIAPIKey)
	c.OpenRouterAPIKey = strings.TrimSpace(c.OpenRouterAPIKey)
	c.AnthropicAPIKey = strings.TrimSpace(c.AnthropicAPIKey)
	c.SlackWebhookURL = strings.TrimSpace(c.SlackWebhookURL)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.RedisQueueURL = strings.TrimSpace(c.RedisQueueURL)
	c.Schedule = strings.TrimSpace(c.Schedule)
}

func trimAll(values []string) []string {
	var trimmed []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return trimmed
}
