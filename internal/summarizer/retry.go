package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	backoffGrowthFactor = 2
	maxBackoff          = 30 * time.Second
)

// RetryingSummarizer re-invokes the wrapped summarizer on ProviderError.
// Invalid input and context errors are returned right away.
type RetryingSummarizer struct {
	next     Summarizer
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// WithRetry returns next unchanged when attempts <= 1.
func WithRetry(
	next Summarizer,
	attempts int,
	backoff time.Duration,
	log *slog.Logger,
) Summarizer {
	if attempts <= 1 {
		return next
	}

	if log == nil {
		log = slog.Default()
	}

	return &RetryingSummarizer{
		next:     next,
		attempts: attempts,
		backoff:  backoff,
		log:      log,
	}
}

func (s *RetryingSummarizer) Summarize(ctx context.Context, input Input) (Result, error) {
	if _, err := validateInput(input); err != nil {
		return Result{}, err
	}

	backoff := s.backoff

	var err error
	for attempt := 1; ; attempt++ {
		var result Result
		result, err = s.next.Summarize(ctx, input)
		if err == nil {
			return result, nil
		}

		var providerErr *ProviderError
		if !errors.As(err, &providerErr) || attempt >= s.attempts || ctx.Err() != nil {
			return Result{}, err
		}

		s.log.WarnContext(ctx, "Summarizer call failed, retrying",
			"error", err,
			"attempt", attempt,
			"maxAttempts", s.attempts,
			"backoff", backoff,
			"sourceURL", input.SourceURL)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Result{}, errors.Join(err, ctx.Err())
		}

		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(backoff time.Duration) time.Duration {
	if backoff < maxBackoff {
		backoff *= backoffGrowthFactor
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return backoff
}
