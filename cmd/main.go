package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"newsrelay/internal/config"
	"newsrelay/internal/database"
	"newsrelay/internal/dispatcher"
	"newsrelay/internal/pipeline"
	"newsrelay/internal/queue"
	"newsrelay/internal/scheduler"
	"newsrelay/internal/scraper"
	"newsrelay/internal/summarizer"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const summaryRetryBackoff = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env file",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return 1
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	q, closeQueue, err := queue.New(ctx, cfg.QueueType, cfg.QueueName, cfg.RedisQueueURL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize queue",
			"error", err,
			"queueType", cfg.QueueType,
			"queueName", cfg.QueueName)

		return 1
	}
	defer func() {
		if err := closeQueue(); err != nil {
			log.ErrorContext(ctx, "Failed to close queue",
				"error", err,
				"queueType", cfg.QueueType)
		}
	}()

	scrapers, err := initScrapers(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize scrapers",
			"error", err,
			"sources", cfg.Sources)

		return 1
	}

	summ, err := initSummarizer(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarizer",
			"error", err,
			"provider", cfg.SummaryProvider)

		return 1
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", cfg.SummaryProvider,
		"model", cfg.SummarizerModel,
		"attempts", cfg.SummaryAttempts,
		"cacheSize", cfg.SummaryCacheSize)

	channels, err := initChannels(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize channels",
			"error", err)

		return 1
	}
	if len(channels) == 0 {
		log.WarnContext(ctx, "No channels are configured so articles will only be stored")
	}

	disp, err := dispatcher.New(
		channels,
		dispatcher.WithTracker(db),
		dispatcher.WithPacing(cfg.DispatchInterval),
		dispatcher.WithLogger(log),
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize dispatcher",
			"error", err)

		return 1
	}
	log.InfoContext(ctx, "Dispatcher is initialized",
		"channels", disp.Channels(),
		"dispatchInterval", cfg.DispatchInterval)

	p, err := pipeline.New(pipeline.Config{
		Scrapers:    scrapers,
		Limit:       cfg.NewsLimit,
		Queue:       q,
		Summarizer:  summ,
		Store:       db,
		Dispatcher:  disp,
		Concurrency: cfg.Concurrency,
		Log:         log,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize pipeline",
			"error", err)

		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if cfg.Schedule == "" {
		return runOnce(ctx, cancel, p, cfg.RunTimeout, sigCh, log)
	}

	sched := scheduler.New(ctx, p, cfg.Schedule, cfg.RunTimeout, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.Schedule,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return 1
	}

	sig := <-sigCh
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	sched.Stop()
	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	return 0
}

func runOnce(
	ctx context.Context,
	cancel context.CancelFunc,
	p *pipeline.Pipeline,
	timeout time.Duration,
	sigCh <-chan os.Signal,
	log *slog.Logger,
) int {
	go func() {
		select {
		case sig := <-sigCh:
			log.InfoContext(ctx, "Shutdown signal is received",
				"signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	runCtx, runCancel := context.WithTimeout(ctx, timeout)
	defer runCancel()

	report, err := p.Run(runCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to run pipeline",
			"error", err,
			"articleCount", len(report.Articles))

		return 1
	}

	log.InfoContext(ctx, "Pipeline run is done",
		"articleCount", len(report.Articles),
		"dispatchedCount", report.Count(pipeline.StageDispatched),
		"summarizeFailures", report.Count(pipeline.StageScraped),
		"dispatchFailures", report.DispatchFailures(),
		"fetchError", report.FetchErr)

	return 0
}

func initScrapers(cfg config.Config, log *slog.Logger) ([]scraper.Scraper, error) {
	opts := scraper.Options{Limit: cfg.NewsLimit, Log: log}

	feedURLs, err := cfg.FeedURLList()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Sources)+len(feedURLs))
	names = append(names, cfg.Sources...)
	for _, feedURL := range feedURLs {
		names = append(names, "rss:"+feedURL)
	}

	scrapers := make([]scraper.Scraper, 0, len(names))
	var errs []error
	for _, name := range names {
		s, err := scraper.New(name, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scrapers = append(scrapers, s)
	}

	return scrapers, errors.Join(errs...)
}

func initSummarizer(cfg config.Config, log *slog.Logger) (summarizer.Summarizer, error) {
	s, err := summarizer.New(summarizer.Config{
		Provider:  cfg.SummaryProvider,
		Model:     cfg.SummarizerModel,
		MaxTokens: cfg.SummarizerMaxTokens,
		APIKey:    cfg.SummarizerAPIKey(),
		BaseURL:   cfg.SummarizerBaseURL,
	})
	if err != nil {
		return nil, err
	}

	s = summarizer.WithRetry(s, cfg.SummaryAttempts, summaryRetryBackoff, log)

	return summarizer.Cached(s, cfg.SummaryCacheSize, cfg.SummaryCacheTTL), nil
}

func initChannels(cfg config.Config, log *slog.Logger) ([]dispatcher.Channel, error) {
	var (
		channels []dispatcher.Channel
		errs     []error
	)

	if cfg.SlackWebhookURL != "" {
		slack, err := dispatcher.NewSlack(cfg.SlackWebhookURL, nil, log)
		if err != nil {
			errs = append(errs, err)
		} else {
			channels = append(channels, slack)
		}
	}

	if cfg.TelegramToken != "" {
		chats, err := dispatcher.NewTelegram(dispatcher.TelegramOptions{
			Token:   cfg.TelegramToken,
			ChatIDs: cfg.TelegramChatIDs,
			Log:     log,
		})
		if err != nil {
			errs = append(errs, err)
		}
		for _, chat := range chats {
			channels = append(channels, chat)
		}
	}

	for _, webhookURL := range cfg.WebhookURLs {
		webhook, err := dispatcher.NewWebhook(webhookURL, nil, log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		channels = append(channels, webhook)
	}

	return channels, errors.Join(errs...)
}
