package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"
	"runtime"
	"sync"
)

const collectMaxConcurrencyGrowthFactor = 2

// Collect runs every scraper and concatenates their articles in scraper
// order, each batch truncated to limit when limit > 0. Failed sources are
// reported through the joined error while the other sources still count.
func Collect(
	ctx context.Context,
	scrapers []Scraper,
	limit int,
	log *slog.Logger,
) ([]domain.Article, error) {
	if len(scrapers) == 0 {
		return nil, errors.New("no scrapers configured")
	}

	batches := make([][]domain.Article, len(scrapers))
	errs := make([]error, len(scrapers))

	concurrency := min(runtime.NumCPU()*collectMaxConcurrencyGrowthFactor, len(scrapers))
	semCh := make(chan struct{}, concurrency)

	var wg sync.WaitGroup

	for i, s := range scrapers {
		wg.Add(1)
		semCh <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-semCh }()

			articles, err := s.Scrape(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("scrape %s: %w", s.Name(), err)
				return
			}

			if limit > 0 && len(articles) > limit {
				articles = articles[:limit]
			}

			batches[i] = articles

			log.InfoContext(ctx, "Source is scraped",
				"source", s.Name(),
				"articleCount", len(articles))
		}()
	}

	wg.Wait()

	var articles []domain.Article
	for _, batch := range batches {
		articles = append(articles, batch...)
	}

	return articles, errors.Join(errs...)
}
