package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/pipeline"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	HourlySpec            = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	defaultRunTimeout     = 15 * time.Minute
)

// Runner performs one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	runner  Runner
	spec    string
	timeout time.Duration
	log     *slog.Logger
}

func New(
	ctx context.Context,
	runner Runner,
	spec string,
	timeout time.Duration,
	log *slog.Logger,
) *Scheduler {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = HourlySpec
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	c := cron.New(
		cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{ctx: ctx, log: log})),
	)

	return &Scheduler{
		ctx:     ctx,
		cron:    c,
		runner:  runner,
		spec:    spec,
		timeout: timeout,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("add cron func (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	s.log.InfoContext(s.ctx, "Scheduler is started",
		"spec", s.spec,
		"timeout", s.timeout)

	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	report, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.WarnContext(ctx, "Pipeline run is interrupted",
				"error", err,
				"articleCount", len(report.Articles))
			return
		}

		s.log.ErrorContext(ctx, "Failed to run pipeline",
			"error", err,
			"articleCount", len(report.Articles))
		return
	}

	s.log.InfoContext(ctx, "Pipeline run is done",
		"articleCount", len(report.Articles),
		"dispatchedCount", report.Count(pipeline.StageDispatched),
		"dispatchFailures", report.DispatchFailures(),
		"duration", report.Duration)
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	ctx context.Context
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.DebugContext(l.ctx, "Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.ErrorContext(l.ctx, "Cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
