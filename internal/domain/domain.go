package domain

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Article is a scraped news item. It is passed by value and never mutated
// after the scraper builds it.
type Article struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"url"`
	Title       string    `json:"title"`
	TextContent string    `json:"text_content"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	PublishedAt time.Time `json:"published_date"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// EnrichedArticle is an Article with the summarizer output attached.
type EnrichedArticle struct {
	Article

	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// ArticleID derives a stable identifier from the article source URL so the
// same story scraped twice maps to the same id.
func ArticleID(sourceURL string) string {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return ""
	}

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
}

// NewArticle builds a scraped article and fills in the derived fields.
func NewArticle(
	source string,
	sourceURL string,
	title string,
	textContent string,
	scrapedAt time.Time,
) Article {
	sourceURL = strings.TrimSpace(sourceURL)

	return Article{
		ID:          ArticleID(sourceURL),
		Source:      strings.TrimSpace(source),
		SourceURL:   sourceURL,
		Title:       strings.TrimSpace(title),
		TextContent: strings.TrimSpace(textContent),
		ScrapedAt:   scrapedAt,
	}
}

func (a Article) Validate() error {
	var errs []error

	if strings.TrimSpace(a.SourceURL) == "" {
		errs = append(errs, errors.New("source URL is empty"))
	}
	if strings.TrimSpace(a.Title) == "" {
		errs = append(errs, errors.New("title is empty"))
	}
	if strings.TrimSpace(a.TextContent) == "" {
		errs = append(errs, errors.New("text content is empty"))
	}

	return errors.Join(errs...)
}

// Enrich returns a new enriched record. The receiver is left untouched and
// the tags slice is copied.
func (a Article) Enrich(summary string, tags []string) EnrichedArticle {
	copied := slices.Clone(tags)
	if copied == nil {
		copied = []string{}
	}

	a.Categories = slices.Clone(a.Categories)

	return EnrichedArticle{
		Article: a,
		Summary: strings.TrimSpace(summary),
		Tags:    copied,
	}
}
