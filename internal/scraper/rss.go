package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"newsrelay/internal/domain"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const RSSName = "rss"

// RSS scrapes any RSS or Atom feed.
type RSS struct {
	feedURL string
	limit   int
	parser  *gofeed.Parser
	log     *slog.Logger
	now     func() time.Time
}

func NewRSS(feedURL string, opts Options) (*RSS, error) {
	opts = opts.withDefaults()

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, errors.New("feed URL is empty")
	}

	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return nil, &FetchError{Source: RSSName, URL: feedURL, Err: err}
	}

	parser := gofeed.NewParser()
	parser.Client = opts.HTTPClient
	parser.UserAgent = userAgent

	return &RSS{
		feedURL: feedURL,
		limit:   opts.Limit,
		parser:  parser,
		log:     opts.Log,
		now:     time.Now,
	}, nil
}

func (s *RSS) Name() string {
	return RSSName
}

func (s *RSS) FeedURL() string {
	return s.feedURL
}

func (s *RSS) Scrape(ctx context.Context) ([]domain.Article, error) {
	parsed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, &FetchError{Source: RSSName, URL: s.feedURL, Err: err}
	}

	feedTitle := strings.TrimSpace(parsed.Title)
	scrapedAt := s.now().UTC()
	articles := make([]domain.Article, 0, min(len(parsed.Items), s.limit))

	for _, item := range parsed.Items {
		if len(articles) == s.limit {
			break
		}

		article, ok := s.parseItem(ctx, feedTitle, item, scrapedAt)
		if !ok {
			continue
		}

		articles = append(articles, article)
	}

	return articles, nil
}

func (s *RSS) parseItem(
	ctx context.Context,
	feedTitle string,
	item *gofeed.Item,
	scrapedAt time.Time,
) (domain.Article, bool) {
	if item == nil {
		return domain.Article{}, false
	}

	text := fragmentText(item.Content)
	if text == "" {
		text = fragmentText(item.Description)
	}

	link := strings.TrimSpace(item.Link)

	article := domain.NewArticle(RSSName, link, fragmentText(item.Title), text, scrapedAt)
	if err := article.Validate(); err != nil {
		s.log.WarnContext(ctx, "Skipping feed item",
			"error", err,
			"feedURL", s.feedURL,
			"feedTitle", feedTitle,
			"itemLink", link)

		return domain.Article{}, false
	}

	if item.Author != nil {
		article.Author = strings.TrimSpace(item.Author.Name)
	}

	article.Categories = item.Categories

	switch {
	case item.PublishedParsed != nil:
		article.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		article.PublishedAt = item.UpdatedParsed.UTC()
	}

	return article, true
}
