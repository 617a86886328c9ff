package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"
	"newsrelay/internal/ratelimiter"
	"time"
)

// Channel delivers one enriched article to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, article domain.EnrichedArticle) error
}

// Tracker remembers which (article, channel) pairs were already delivered.
type Tracker interface {
	Delivered(ctx context.Context, articleID string, channel string) (bool, error)
	MarkDelivered(ctx context.Context, articleID string, channel string) error
}

// ChannelError records a failed delivery attempt. It is reported inside a
// DispatchResult, never returned from Dispatch.
type ChannelError struct {
	Channel   string
	ArticleID string
	Err       error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s (article = %s): %v", e.Channel, e.ArticleID, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

type ChannelResult struct {
	Channel string
	// Err is a *ChannelError when the attempt failed.
	Err error
	// Skipped is set when the tracker reported a previous delivery.
	Skipped bool
}

// DispatchResult holds the per-channel outcome for one article.
type DispatchResult struct {
	ArticleID string
	Channels  []ChannelResult
}

// OK reports whether no channel failed.
func (r DispatchResult) OK() bool {
	for _, c := range r.Channels {
		if c.Err != nil {
			return false
		}
	}
	return true
}

func (r DispatchResult) Failed() []ChannelResult {
	var failed []ChannelResult
	for _, c := range r.Channels {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Delivered counts channels that accepted the article during this dispatch.
func (r DispatchResult) Delivered() int {
	n := 0
	for _, c := range r.Channels {
		if c.Err == nil && !c.Skipped {
			n++
		}
	}
	return n
}

type Option func(*Dispatcher)

func WithTracker(tracker Tracker) Option {
	return func(d *Dispatcher) { d.tracker = tracker }
}

// WithPacing enforces a minimum interval between two sends on the same
// channel.
func WithPacing(interval time.Duration) Option {
	return func(d *Dispatcher) { d.pacing = interval }
}

func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

type Dispatcher struct {
	channels []Channel
	tracker  Tracker
	pacing   time.Duration
	limiter  *ratelimiter.RateLimiter
	log      *slog.Logger
}

// New rejects channels sharing a name: the name keys the delivery ledger.
func New(channels []Channel, opts ...Option) (*Dispatcher, error) {
	seen := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		name := c.Name()
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate channel name: %s", name)
		}
		seen[name] = struct{}{}
	}

	d := &Dispatcher{
		channels: channels,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.pacing > 0 {
		d.limiter = ratelimiter.New(ratelimiter.Fixed(d.pacing), d.log)
	}

	return d, nil
}

func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

// Dispatch attempts every (article, channel) pair and returns exactly one
// result per article, in input order. Once ctx is done, remaining pairs are
// recorded as failures wrapping ctx.Err().
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	articles []domain.EnrichedArticle,
) []DispatchResult {
	results := make([]DispatchResult, len(articles))

	for i, article := range articles {
		results[i] = DispatchResult{
			ArticleID: article.ID,
			Channels:  make([]ChannelResult, 0, len(d.channels)),
		}

		for _, channel := range d.channels {
			results[i].Channels = append(results[i].Channels, d.send(ctx, channel, article))
		}
	}

	return results
}

func (d *Dispatcher) send(
	ctx context.Context,
	channel Channel,
	article domain.EnrichedArticle,
) ChannelResult {
	name := channel.Name()
	result := ChannelResult{Channel: name}

	fail := func(err error) ChannelResult {
		result.Err = &ChannelError{Channel: name, ArticleID: article.ID, Err: err}
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if d.tracker != nil && article.ID != "" {
		delivered, err := d.tracker.Delivered(ctx, article.ID, name)
		if err != nil {
			d.log.WarnContext(ctx, "Failed to check delivery ledger",
				"error", err,
				"channel", name,
				"articleID", article.ID)
		} else if delivered {
			d.log.DebugContext(ctx, "Article already delivered",
				"channel", name,
				"articleID", article.ID)
			result.Skipped = true
			return result
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, name); err != nil {
			return fail(fmt.Errorf("wait for pacing: %w", err))
		}
	}

	if err := channel.Send(ctx, article); err != nil {
		d.log.ErrorContext(ctx, "Failed to send article",
			"error", err,
			"channel", name,
			"articleID", article.ID,
			"url", article.SourceURL)
		return fail(err)
	}

	if d.tracker != nil && article.ID != "" {
		if err := d.tracker.MarkDelivered(ctx, article.ID, name); err != nil {
			d.log.WarnContext(ctx, "Failed to record delivery",
				"error", err,
				"channel", name,
				"articleID", article.ID)
		}
	}

	d.log.InfoContext(ctx, "Sent article",
		"channel", name,
		"articleID", article.ID)

	return result
}
