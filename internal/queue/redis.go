package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"newsrelay/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Redis stores articles as JSON in a list: LPUSH on enqueue, RPOP on dequeue.
type Redis struct {
	client *redis.Client
	name   string
}

func NewRedis(client *redis.Client, name string) *Redis {
	return &Redis{client: client, name: name}
}

func (q *Redis) Name() string {
	return q.name
}

func (q *Redis) Enqueue(ctx context.Context, article domain.Article) error {
	payload, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("push article: %w", err)
	}

	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (domain.Article, bool, error) {
	payload, err := q.client.RPop(ctx, q.name).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Article{}, false, nil
	}
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("pop article: %w", err)
	}

	var article domain.Article
	if err := json.Unmarshal(payload, &article); err != nil {
		return domain.Article{}, false, fmt.Errorf("unmarshal article: %w", err)
	}

	return article, true, nil
}

func (q *Redis) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("get queue length: %w", err)
	}
	return n, nil
}

func (q *Redis) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.name).Err(); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	return nil
}
