package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"newsrelay/internal/dispatcher"
	"newsrelay/internal/domain"
	"newsrelay/internal/pipeline"
	"newsrelay/internal/queue"
	"newsrelay/internal/scraper"
	"newsrelay/internal/summarizer"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	name     string
	articles []domain.Article
	err      error
}

func (s stubScraper) Name() string {
	return s.name
}

func (s stubScraper) Scrape(context.Context) ([]domain.Article, error) {
	return s.articles, s.err
}

type stubSummarizer struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
	delay func(text string) time.Duration
}

func (s *stubSummarizer) Summarize(ctx context.Context, input summarizer.Input) (summarizer.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if strings.TrimSpace(input.Text) == "" {
		return summarizer.Result{}, fmt.Errorf("%w: text is empty", summarizer.ErrInvalidInput)
	}
	if s.fail[input.SourceURL] {
		return summarizer.Result{}, &summarizer.ProviderError{
			Provider: "stub",
			Model:    "stub",
			Err:      errors.New("rate limited"),
		}
	}
	if s.delay != nil {
		select {
		case <-time.After(s.delay(input.Text)):
		case <-ctx.Done():
			return summarizer.Result{}, ctx.Err()
		}
	}

	if input.Text == "Company X raised $10M in funding." {
		return summarizer.Result{Summary: "Company X raised $10M.", Tags: []string{"funding", "startup"}}, nil
	}

	return summarizer.Result{Summary: "Summary of " + input.Title, Tags: []string{"news"}}, nil
}

type stubChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []domain.EnrichedArticle
}

func (c *stubChannel) Name() string {
	return c.name
}

func (c *stubChannel) Send(_ context.Context, article domain.EnrichedArticle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, article)

	return c.err
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]domain.EnrichedArticle
}

func (s *memoryStore) SaveArticle(_ context.Context, article domain.EnrichedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved == nil {
		s.saved = make(map[string]domain.EnrichedArticle)
	}
	s.saved[article.ID] = article

	return nil
}

func newArticle(url string, title string, text string) domain.Article {
	return domain.NewArticle("stub", url, title, text, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDispatcher(t *testing.T, channels ...dispatcher.Channel) *dispatcher.Dispatcher {
	t.Helper()

	d, err := dispatcher.New(channels, dispatcher.WithLogger(discardLogger()))
	require.NoError(t, err)

	return d
}

// flakyQueue fails the enqueue with index failAt.
type flakyQueue struct {
	*queue.Memory

	failAt   int
	enqueued int
}

func (q *flakyQueue) Enqueue(ctx context.Context, article domain.Article) error {
	if q.enqueued == q.failAt {
		return errors.New("connection reset")
	}
	q.enqueued++

	return q.Memory.Enqueue(ctx, article)
}

func TestRunFailedEnqueueLeavesQueueEmpty(t *testing.T) {
	q := &flakyQueue{Memory: queue.NewMemory("test"), failAt: 1}
	channel := &stubChannel{name: "stub"}

	p, err := pipeline.New(pipeline.Config{
		Scrapers: []scraper.Scraper{stubScraper{name: "stub", articles: []domain.Article{
			newArticle("https://example.com/1", "One", "text"),
			newArticle("https://example.com/2", "Two", "text"),
		}}},
		Queue:      q,
		Summarizer: &stubSummarizer{},
		Dispatcher: newDispatcher(t, channel),
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue article")

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "partially enqueued articles must not leak into the next run")
	assert.Empty(t, channel.sent)
}

func TestRunEndToEnd(t *testing.T) {
	article := newArticle("https://example.com/x", "Company X raises", "Company X raised $10M in funding.")
	first := &stubChannel{name: "first"}
	second := &stubChannel{name: "second"}
	store := &memoryStore{}

	p, err := pipeline.New(pipeline.Config{
		Scrapers:    []scraper.Scraper{stubScraper{name: "stub", articles: []domain.Article{article}}},
		Summarizer:  &stubSummarizer{},
		Dispatcher:  newDispatcher(t, first, second),
		Store:       store,
		Concurrency: 1,
		Log:         discardLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.FetchErr)
	require.Len(t, report.Articles, 1)

	got := report.Articles[0]
	assert.Equal(t, pipeline.StageDispatched, got.Stage)
	require.NotNil(t, got.Enriched)
	assert.Equal(t, "Company X raised $10M.", got.Enriched.Summary)
	assert.Equal(t, []string{"funding", "startup"}, got.Enriched.Tags)
	assert.Equal(t, "Company X raised $10M in funding.", got.Enriched.TextContent)

	require.NotNil(t, got.Dispatch)
	assert.Equal(t, article.ID, got.Dispatch.ArticleID)
	assert.True(t, got.Dispatch.OK())
	assert.Equal(t, 2, got.Dispatch.Delivered())

	assert.Len(t, first.sent, 1)
	assert.Len(t, second.sent, 1)
	assert.Contains(t, store.saved, article.ID)

	assert.Equal(t, 1, report.Count(pipeline.StageDispatched))
	assert.Zero(t, report.DispatchFailures())
}

func TestRunRecordsSummarizeFailures(t *testing.T) {
	articles := []domain.Article{
		newArticle("https://example.com/1", "One", "first text"),
		newArticle("https://example.com/2", "Two", "second text"),
		newArticle("https://example.com/3", "Three", "third text"),
	}
	channel := &stubChannel{name: "stub"}

	p, err := pipeline.New(pipeline.Config{
		Scrapers:   []scraper.Scraper{stubScraper{name: "stub", articles: articles}},
		Summarizer: &stubSummarizer{fail: map[string]bool{"https://example.com/2": true}},
		Dispatcher: newDispatcher(t, channel),
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Articles, 3)

	assert.Equal(t, pipeline.StageDispatched, report.Articles[0].Stage)
	assert.Equal(t, pipeline.StageScraped, report.Articles[1].Stage)
	assert.Equal(t, pipeline.StageDispatched, report.Articles[2].Stage)

	var providerErr *summarizer.ProviderError
	require.ErrorAs(t, report.Articles[1].SummarizeErr, &providerErr)
	assert.Nil(t, report.Articles[1].Dispatch)

	assert.Len(t, channel.sent, 2)
	assert.Equal(t, 1, report.Count(pipeline.StageScraped))
}

func TestRunPreservesOrderWithConcurrency(t *testing.T) {
	var articles []domain.Article
	for i := range 8 {
		articles = append(articles, newArticle(
			fmt.Sprintf("https://example.com/%d", i),
			fmt.Sprintf("Title %d", i),
			strings.Repeat("x", 8-i),
		))
	}
	channel := &stubChannel{name: "stub"}

	p, err := pipeline.New(pipeline.Config{
		Scrapers: []scraper.Scraper{stubScraper{name: "stub", articles: articles}},
		Summarizer: &stubSummarizer{delay: func(text string) time.Duration {
			return time.Duration(len(text)) * 5 * time.Millisecond
		}},
		Dispatcher:  newDispatcher(t, channel),
		Concurrency: 4,
		Log:         discardLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Articles, len(articles))

	for i, a := range report.Articles {
		assert.Equal(t, articles[i].ID, a.Article.ID)
		require.NotNil(t, a.Enriched)
		assert.Equal(t, "Summary of "+articles[i].Title, a.Enriched.Summary)
		assert.Equal(t, articles[i].ID, a.Dispatch.ArticleID)
	}

	require.Len(t, channel.sent, len(articles))
	for i, sent := range channel.sent {
		assert.Equal(t, articles[i].ID, sent.ID)
	}
}

func TestRunContinuesWithPartialSources(t *testing.T) {
	fetchErr := &scraper.FetchError{Source: "broken", URL: "https://broken.example", Err: errors.New("502")}

	p, err := pipeline.New(pipeline.Config{
		Scrapers: []scraper.Scraper{
			stubScraper{name: "broken", err: fetchErr},
			stubScraper{name: "stub", articles: []domain.Article{
				newArticle("https://example.com/1", "One", "text"),
			}},
		},
		Summarizer: &stubSummarizer{},
		Dispatcher: newDispatcher(t, &stubChannel{name: "stub"}),
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	var gotFetchErr *scraper.FetchError
	require.ErrorAs(t, report.FetchErr, &gotFetchErr)
	assert.Equal(t, "broken", gotFetchErr.Source)
	require.Len(t, report.Articles, 1)
	assert.Equal(t, pipeline.StageDispatched, report.Articles[0].Stage)
}

func TestRunFailsWhenNoSourceSucceeds(t *testing.T) {
	fetchErr := &scraper.FetchError{Source: "broken", URL: "https://broken.example", Err: errors.New("502")}
	summ := &stubSummarizer{}

	p, err := pipeline.New(pipeline.Config{
		Scrapers:   []scraper.Scraper{stubScraper{name: "broken", err: fetchErr}},
		Summarizer: summ,
		Dispatcher: newDispatcher(t),
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)

	var gotFetchErr *scraper.FetchError
	assert.ErrorAs(t, err, &gotFetchErr)
	assert.Empty(t, report.Articles)
	assert.Zero(t, summ.calls)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	channel := &stubChannel{name: "stub"}
	p, err := pipeline.New(pipeline.Config{
		Scrapers: []scraper.Scraper{stubScraper{name: "stub", articles: []domain.Article{
			newArticle("https://example.com/1", "One", "text"),
		}}},
		Summarizer: &stubSummarizer{},
		Dispatcher: newDispatcher(t, channel),
		Log:        discardLogger(),
	})
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, channel.sent)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scrapers configured")
	assert.Contains(t, err.Error(), "summarizer is nil")
	assert.Contains(t, err.Error(), "dispatcher is nil")
}
