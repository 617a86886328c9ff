package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
)

// IntervalFunc returns the minimum gap between two sends to key. Zero or
// negative disables pacing for that key.
type IntervalFunc func(key string) time.Duration

// Fixed paces every key with the same interval.
func Fixed(interval time.Duration) IntervalFunc {
	return func(string) time.Duration { return interval }
}

// TelegramChat paces Telegram chats: groups (negative IDs and @channel
// usernames) get the slower rate.
func TelegramChat(key string) time.Duration {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "@") {
		return groupChatRate
	}

	chatID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return privateChatRate
	}

	return getRate(chatID)
}

// RateLimiter spaces out sends per destination key.
type RateLimiter struct {
	interval IntervalFunc
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	log      *slog.Logger
}

func New(interval IntervalFunc, log *slog.Logger) *RateLimiter {
	if interval == nil {
		interval = Fixed(0)
	}
	if log == nil {
		log = slog.Default()
	}

	return &RateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		log:      log,
	}
}

// Wait blocks until a send to key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	limiter := rl.limiter(key)
	if limiter == nil {
		return nil
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting send",
		"key", key,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[key]; ok {
		return limiter
	}

	interval := rl.interval(key)
	if interval <= 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	rl.limiters[key] = limiter

	return limiter
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
