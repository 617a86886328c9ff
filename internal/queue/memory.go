package queue

import (
	"context"
	"newsrelay/internal/domain"
	"sync"
)

type Memory struct {
	name  string
	items []domain.Article
	mu    sync.Mutex
}

func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

func (q *Memory) Name() string {
	return q.name
}

func (q *Memory) Enqueue(ctx context.Context, article domain.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, article)

	return nil
}

func (q *Memory) Dequeue(ctx context.Context) (domain.Article, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Article{}, false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.Article{}, false, nil
	}

	article := q.items[0]
	q.items[0] = domain.Article{}
	q.items = q.items[1:]

	return article, true, nil
}

func (q *Memory) Len(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.items)), nil
}

func (q *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil

	return nil
}
