package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/dispatcher"
	"newsrelay/internal/domain"
	"newsrelay/internal/queue"
	"newsrelay/internal/scraper"
	"newsrelay/internal/summarizer"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type Stage string

const (
	StageScraped    Stage = "scraped"
	StageSummarized Stage = "summarized"
	StageDispatched Stage = "dispatched"
)

// Dispatcher delivers enriched articles and reports one result per article.
type Dispatcher interface {
	Dispatch(ctx context.Context, articles []domain.EnrichedArticle) []dispatcher.DispatchResult
}

// Store persists enriched articles.
type Store interface {
	SaveArticle(ctx context.Context, article domain.EnrichedArticle) error
}

// ArticleReport tells how far one article got through the run.
type ArticleReport struct {
	Article domain.Article
	Stage   Stage
	// Enriched is set once the article is summarized.
	Enriched     *domain.EnrichedArticle
	SummarizeErr error
	Dispatch     *dispatcher.DispatchResult
}

type Report struct {
	Articles []ArticleReport
	// FetchErr joins the failures of individual sources.
	FetchErr error
	Duration time.Duration
}

// Count returns the number of articles that stopped at stage.
func (r Report) Count(stage Stage) int {
	n := 0
	for _, a := range r.Articles {
		if a.Stage == stage {
			n++
		}
	}
	return n
}

// DispatchFailures counts failed (article, channel) attempts.
func (r Report) DispatchFailures() int {
	n := 0
	for _, a := range r.Articles {
		if a.Dispatch != nil {
			n += len(a.Dispatch.Failed())
		}
	}
	return n
}

type Config struct {
	Scrapers []scraper.Scraper
	// Limit caps the articles taken from each source; zero keeps all.
	Limit      int
	Queue      queue.Queue
	Summarizer summarizer.Summarizer
	// Store is optional.
	Store      Store
	Dispatcher Dispatcher
	// Concurrency bounds parallel summarize calls; 1 runs them sequentially.
	Concurrency int
	Log         *slog.Logger
}

type Pipeline struct {
	scrapers    []scraper.Scraper
	limit       int
	queue       queue.Queue
	summarizer  summarizer.Summarizer
	store       Store
	dispatcher  Dispatcher
	concurrency int
	log         *slog.Logger
}

func New(cfg Config) (*Pipeline, error) {
	var errs []error
	if len(cfg.Scrapers) == 0 {
		errs = append(errs, errors.New("no scrapers configured"))
	}
	if cfg.Summarizer == nil {
		errs = append(errs, errors.New("summarizer is nil"))
	}
	if cfg.Dispatcher == nil {
		errs = append(errs, errors.New("dispatcher is nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.Queue == nil {
		cfg.Queue = queue.NewMemory(queue.DefaultName)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Pipeline{
		scrapers:    cfg.Scrapers,
		limit:       cfg.Limit,
		queue:       cfg.Queue,
		summarizer:  cfg.Summarizer,
		store:       cfg.Store,
		dispatcher:  cfg.Dispatcher,
		concurrency: cfg.Concurrency,
		log:         cfg.Log,
	}, nil
}

// Run performs one scrape → summarize → dispatch pass. Source and per-article
// failures are recorded in the report; an error is returned only when no
// article could be scraped, the queue fails, or ctx is done.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	startedAt := time.Now()

	articles, fetchErr := scraper.Collect(ctx, p.scrapers, p.limit, p.log)
	report := Report{FetchErr: fetchErr}

	if fetchErr != nil {
		p.log.WarnContext(ctx, "Some sources failed",
			"error", fetchErr,
			"articleCount", len(articles))

		if len(articles) == 0 {
			return report, fmt.Errorf("collect articles: %w", fetchErr)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("collect articles: %w", err)
	}

	for _, article := range articles {
		if err := p.queue.Enqueue(ctx, article); err != nil {
			p.clearQueue(ctx)
			return report, fmt.Errorf("enqueue article: %w", err)
		}
	}

	queued, err := p.drain(ctx)
	if err != nil {
		p.clearQueue(ctx)
		return report, fmt.Errorf("drain queue: %w", err)
	}

	report.Articles = make([]ArticleReport, len(queued))
	for i, article := range queued {
		report.Articles[i] = ArticleReport{Article: article, Stage: StageScraped}
	}

	p.summarize(ctx, report.Articles)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("summarize articles: %w", err)
	}

	var (
		enriched []domain.EnrichedArticle
		indexes  []int
	)
	for i, a := range report.Articles {
		if a.Enriched == nil {
			continue
		}

		if p.store != nil {
			if err := p.store.SaveArticle(ctx, *a.Enriched); err != nil {
				p.log.ErrorContext(ctx, "Failed to store article",
					"error", err,
					"articleID", a.Article.ID,
					"url", a.Article.SourceURL)
			}
		}

		enriched = append(enriched, *a.Enriched)
		indexes = append(indexes, i)
	}

	if len(enriched) > 0 {
		results := p.dispatcher.Dispatch(ctx, enriched)
		for j, result := range results {
			i := indexes[j]
			report.Articles[i].Dispatch = &result
			report.Articles[i].Stage = StageDispatched
		}
	}

	report.Duration = time.Since(startedAt)

	p.log.InfoContext(ctx, "Pipeline run finished",
		"articleCount", len(report.Articles),
		"summarizedCount", len(enriched),
		"summarizeFailures", report.Count(StageScraped),
		"dispatchFailures", report.DispatchFailures(),
		"duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("dispatch articles: %w", err)
	}

	return report, nil
}

// clearQueue drops what an aborted run left queued so the next run does not
// process it twice.
func (p *Pipeline) clearQueue(ctx context.Context) {
	if err := p.queue.Clear(context.WithoutCancel(ctx)); err != nil {
		p.log.ErrorContext(ctx, "Failed to clear queue",
			"error", err)
	}
}

func (p *Pipeline) drain(ctx context.Context) ([]domain.Article, error) {
	var articles []domain.Article
	for {
		article, ok, err := p.queue.Dequeue(ctx)
		if err != nil {
			return articles, err
		}
		if !ok {
			return articles, nil
		}
		articles = append(articles, article)
	}
}

// summarize fills Enriched or SummarizeErr of every report in place. Each
// goroutine owns one slot.
func (p *Pipeline) summarize(ctx context.Context, reports []ArticleReport) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range reports {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			article := reports[i].Article

			result, err := p.summarizer.Summarize(ctx, summarizer.Input{
				Text:      article.TextContent,
				Title:     article.Title,
				SourceURL: article.SourceURL,
			})
			if err != nil {
				p.log.ErrorContext(ctx, "Failed to summarize article",
					"error", err,
					"articleID", article.ID,
					"url", article.SourceURL)

				reports[i].SummarizeErr = err
				return nil
			}

			enriched := article.Enrich(result.Summary, result.Tags)
			reports[i].Enriched = &enriched
			reports[i].Stage = StageSummarized

			return nil
		})
	}

	_ = g.Wait()
}
