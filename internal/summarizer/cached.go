package summarizer

import (
	"context"
	"time"
)

// CachingSummarizer memoizes results of the wrapped summarizer in an LRU
// cache whose entries expire after ttl.
type CachingSummarizer struct {
	next  Summarizer
	cache *summaryCache
	ttl   time.Duration
	now   func() time.Time
}

// Cached wraps next with a result cache. It returns next unchanged when
// maxEntries or ttl is not positive.
func Cached(next Summarizer, maxEntries int, ttl time.Duration) Summarizer {
	if maxEntries <= 0 || ttl <= 0 {
		return next
	}

	return &CachingSummarizer{
		next:  next,
		cache: newSummaryCache(maxEntries),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *CachingSummarizer) Summarize(ctx context.Context, input Input) (Result, error) {
	text, err := validateInput(input)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	key := summaryCacheKey(input.SourceURL, text)

	if result, ok := s.cache.get(key, now); ok {
		return result, nil
	}

	result, err := s.next.Summarize(ctx, input)
	if err != nil {
		return Result{}, err
	}

	s.cache.set(key, result, now.Add(s.ttl), now)

	return result, nil
}
