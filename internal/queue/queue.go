package queue

import (
	"context"
	"errors"
	"fmt"
	"newsrelay/internal/domain"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TypeList  = "list"
	TypeRedis = "redis"

	DefaultName = "newsrelay:articles"

	connectionTimeout = 5 * time.Second
)

// Queue hands scraped articles from the scrape stage to the summarize stage
// in FIFO order.
type Queue interface {
	Enqueue(ctx context.Context, article domain.Article) error
	// Dequeue returns false when the queue is empty.
	Dequeue(ctx context.Context) (domain.Article, bool, error)
	Len(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// New builds the queue selected by kind. The returned close function releases
// the underlying connection, if any.
func New(
	ctx context.Context,
	kind string,
	name string,
	redisURL string,
) (Queue, func() error, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", TypeList:
		return NewMemory(name), func() error { return nil }, nil
	case TypeRedis:
		redisURL = strings.TrimSpace(redisURL)
		if redisURL == "" {
			return nil, nil, errors.New("redis queue URL is empty")
		}

		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis URL: %w", err)
		}

		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}

		return NewRedis(client, name), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue type: %q (valid: %s, %s)", kind, TypeList, TypeRedis)
	}
}
