package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"strings"
	"time"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	DefaultLimit        = 5
	defaultHTTPTimeout  = 20 * time.Second
	maxBodyBytes        = 5 << 20
	itemsMaxParallelism = 4

	rssPrefix = "rss:"
)

// Scraper fetches a finite batch of articles from one named source.
//
// Item level failures are logged and skipped. A FetchError is returned when
// the source listing itself cannot be fetched or every item failed.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context) ([]domain.Article, error)
}

// Options configure a scraper variant.
type Options struct {
	// Limit bounds the number of articles returned, DefaultLimit when <= 0.
	Limit int
	// HTTPClient is shared by all requests of the scraper.
	HTTPClient *http.Client
	// BaseURL overrides the source endpoint (mirrors, tests).
	BaseURL string
	Log     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")

	return o
}

// FetchError reports an unreachable source or a malformed response.
type FetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (URL = %s): %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// New builds a scraper by name: "hackernews", "techcrunch" or "rss:<feed URL>".
// A bare https URL is treated as an RSS feed.
func New(name string, opts Options) (Scraper, error) {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == HackerNewsName:
		return NewHackerNews(opts), nil
	case lower == TechCrunchName:
		return NewTechCrunch(opts), nil
	case strings.HasPrefix(lower, rssPrefix):
		return NewRSS(strings.TrimSpace(trimmed[len(rssPrefix):]), opts)
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return NewRSS(trimmed, opts)
	default:
		return nil, fmt.Errorf(
			"unknown scraper: %q (valid: %s, %s, %s<url>)",
			name,
			HackerNewsName,
			TechCrunchName,
			rssPrefix,
		)
	}
}

func getJSON(
	ctx context.Context,
	client *http.Client,
	rawURL string,
	dst any,
	log *slog.Logger,
) error {
	body, err := get(ctx, client, rawURL, log)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	return nil
}

func get(
	ctx context.Context,
	client *http.Client,
	rawURL string,
	log *slog.Logger,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req) //nolint:gosec // Source URL comes from configuration.
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}
