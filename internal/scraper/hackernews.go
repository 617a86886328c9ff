package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"strings"
	"sync"
	"time"
)

const (
	HackerNewsName = "hackernews"

	hackerNewsAPIBaseURL  = "https://hacker-news.firebaseio.com"
	hackerNewsItemURLBase = "https://news.ycombinator.com/item?id="
)

type hackerNewsItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// HackerNews scrapes the current top stories through the public Firebase API
// and reads the linked pages for their text.
type HackerNews struct {
	apiBaseURL string
	limit      int
	client     *http.Client
	log        *slog.Logger
	now        func() time.Time
}

func NewHackerNews(opts Options) *HackerNews {
	opts = opts.withDefaults()

	apiBaseURL := opts.BaseURL
	if apiBaseURL == "" {
		apiBaseURL = hackerNewsAPIBaseURL
	}

	return &HackerNews{
		apiBaseURL: apiBaseURL,
		limit:      opts.Limit,
		client:     opts.HTTPClient,
		log:        opts.Log,
		now:        time.Now,
	}
}

func (s *HackerNews) Name() string {
	return HackerNewsName
}

func (s *HackerNews) Scrape(ctx context.Context) ([]domain.Article, error) {
	topStoriesURL := s.apiBaseURL + "/v0/topstories.json"

	var ids []int64
	if err := getJSON(ctx, s.client, topStoriesURL, &ids, s.log); err != nil {
		return nil, &FetchError{Source: HackerNewsName, URL: topStoriesURL, Err: err}
	}

	if len(ids) > s.limit {
		ids = ids[:s.limit]
	}
	if len(ids) == 0 {
		return []domain.Article{}, nil
	}

	articles := make([]domain.Article, len(ids))
	oks := make([]bool, len(ids))
	errs := make([]error, len(ids))

	tasks := make(chan int)
	var wg sync.WaitGroup

	for range min(itemsMaxParallelism, len(ids)) {
		wg.Go(func() {
			for i := range tasks {
				articles[i], oks[i], errs[i] = s.scrapeItem(ctx, ids[i])
			}
		})
	}

	for i := range ids {
		tasks <- i
	}

	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: HackerNewsName, URL: topStoriesURL, Err: err}
	}

	result := make([]domain.Article, 0, len(ids))
	var failed []error

	for i := range ids {
		if errs[i] != nil {
			s.log.ErrorContext(ctx, "Failed to scrape Hacker News item",
				"error", errs[i],
				"itemID", ids[i])

			failed = append(failed, errs[i])
			continue
		}

		if oks[i] {
			result = append(result, articles[i])
		}
	}

	if len(result) == 0 && len(failed) > 0 {
		return nil, &FetchError{
			Source: HackerNewsName,
			URL:    topStoriesURL,
			Err:    fmt.Errorf("all items failed: %w", errors.Join(failed...)),
		}
	}

	return result, nil
}

// scrapeItem returns false without an error when the item is not a usable
// story (job posting, deleted, no text anywhere).
func (s *HackerNews) scrapeItem(ctx context.Context, id int64) (domain.Article, bool, error) {
	itemURL := fmt.Sprintf("%s/v0/item/%d.json", s.apiBaseURL, id)

	var item hackerNewsItem
	if err := getJSON(ctx, s.client, itemURL, &item, s.log); err != nil {
		return domain.Article{}, false, fmt.Errorf("get item (URL = %s): %w", itemURL, err)
	}

	if item.Deleted || item.Dead || (item.Type != "" && item.Type != "story") {
		s.log.DebugContext(ctx, "Skipping Hacker News item",
			"itemID", id,
			"type", item.Type,
			"deleted", item.Deleted,
			"dead", item.Dead)

		return domain.Article{}, false, nil
	}

	postURL := strings.TrimSpace(item.URL)
	if postURL == "" {
		postURL = fmt.Sprintf("%s%d", hackerNewsItemURLBase, id)
	}

	var text string
	if strings.TrimSpace(item.URL) != "" {
		page, err := get(ctx, s.client, postURL, s.log)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to fetch Hacker News story page",
				"error", err,
				"itemID", id,
				"url", postURL)
		} else if text, err = pageText(page, "body"); err != nil {
			s.log.WarnContext(ctx, "Failed to extract Hacker News story text",
				"error", err,
				"itemID", id,
				"url", postURL)
		}
	}

	if text == "" {
		text = fragmentText(item.Text)
	}

	title := strings.TrimSpace(item.Title)
	if text == "" || title == "" {
		s.log.WarnContext(ctx, "Skipping Hacker News story without text",
			"itemID", id,
			"url", postURL,
			"title", title)

		return domain.Article{}, false, nil
	}

	article := domain.NewArticle(HackerNewsName, postURL, title, text, s.now().UTC())
	article.Author = strings.TrimSpace(item.By)
	if item.Time > 0 {
		article.PublishedAt = time.Unix(item.Time, 0).UTC()
	}

	return article, true, nil
}
