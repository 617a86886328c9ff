package dispatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"newsrelay/internal/domain"
	"strings"
	"time"
)

const WebhookName = "webhook"

type webhookPayload struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Summary     string     `json:"summary"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
}

// Webhook posts the enriched article as JSON to an arbitrary endpoint.
type Webhook struct {
	name   string
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewWebhook builds a webhook channel. The name carries host and path plus a
// short hash of the full URL, so webhooks differing only in query or
// credentials keep separate delivery records without exposing secrets.
func NewWebhook(rawURL string, client *http.Client, log *slog.Logger) (*Webhook, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("webhook URL is empty")
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL scheme is not http(s): %s", parsed.Scheme)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Webhook{
		name:   webhookName(parsed, rawURL),
		url:    rawURL,
		client: newHTTPClient(client),
		log:    log,
	}, nil
}

func webhookName(parsed *url.URL, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%s:%s%s#%s", WebhookName, parsed.Host, parsed.Path, hex.EncodeToString(sum[:4]))
}

func (w *Webhook) Name() string {
	return w.name
}

func (w *Webhook) Send(ctx context.Context, article domain.EnrichedArticle) error {
	payload := webhookPayload{
		ID:          article.ID,
		Source:      article.Source,
		URL:         article.SourceURL,
		Title:       article.Title,
		Author:      article.Author,
		Categories:  article.Categories,
		Summary:     article.Summary,
		Tags:        article.Tags,
		PublishedAt: nil,
		ScrapedAt:   article.ScrapedAt,
	}
	if !article.PublishedAt.IsZero() {
		publishedAt := article.PublishedAt
		payload.PublishedAt = &publishedAt
	}
	if payload.Tags == nil {
		payload.Tags = []string{}
	}

	if err := postJSON(ctx, w.client, w.url, payload, w.log); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	return nil
}
