package queue_test

import (
	"context"
	"newsrelay/internal/domain"
	"newsrelay/internal/queue"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(url string) domain.Article {
	a := domain.NewArticle(
		"hackernews",
		url,
		"Title "+url,
		"Company X raised $10M in funding.",
		time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	)
	a.Author = "pg"
	a.Categories = []string{"funding"}
	a.PublishedAt = time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)

	return a
}

func exerciseQueue(t *testing.T, q queue.Queue) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty queue must report no item")

	first := article("https://example.com/1")
	second := article("https://example.com/2")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.TextContent, got.TextContent)
	assert.Equal(t, first.Categories, got.Categories)
	assert.True(t, first.PublishedAt.Equal(got.PublishedAt))

	require.NoError(t, q.Clear(ctx))

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryQueue(t *testing.T) {
	exerciseQueue(t, queue.NewMemory("test"))
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseQueue(t, queue.NewRedis(client, "test:articles"))
}

func TestRedisQueueWireFormat(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := queue.NewRedis(client, "test:articles")
	require.NoError(t, q.Enqueue(context.Background(), article("https://example.com/1")))

	items, err := mr.List("test:articles")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"url":"https://example.com/1"`)
	assert.Contains(t, items[0], `"source":"hackernews"`)
}

func TestMemoryQueueCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := queue.NewMemory("test")
	require.ErrorIs(t, q.Enqueue(ctx, article("https://example.com/1")), context.Canceled)

	_, _, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	q, closeQueue, err := queue.New(ctx, "", "", "")
	require.NoError(t, err)
	require.NoError(t, closeQueue())
	assert.IsType(t, &queue.Memory{}, q)

	_, _, err = queue.New(ctx, queue.TypeRedis, "", "")
	require.Error(t, err)

	_, _, err = queue.New(ctx, "kafka", "", "")
	require.Error(t, err)

	mr := miniredis.RunT(t)
	q, closeQueue, err = queue.New(ctx, "Redis", "custom", "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeQueue() })

	redisQueue, ok := q.(*queue.Redis)
	require.True(t, ok)
	assert.Equal(t, "custom", redisQueue.Name())
}
