package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"newsrelay/internal/domain"
	"strings"
	"time"
)

// SaveArticle inserts the enriched article or refreshes its summary and tags
// when it is already stored.
func (d *Database) SaveArticle(ctx context.Context, article domain.EnrichedArticle) error {
	if strings.TrimSpace(article.ID) == "" {
		return errors.New("article ID is empty")
	}

	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	var publishedAt sql.NullTime
	if !article.PublishedAt.IsZero() {
		publishedAt = sql.NullTime{Time: article.PublishedAt.UTC(), Valid: true}
	}

	query := `insert into articles (id, source, url, title, summary, tags, published_at, scraped_at)
values (?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
    title = excluded.title,
    summary = excluded.summary,
    tags = excluded.tags,
    published_at = excluded.published_at,
    scraped_at = excluded.scraped_at`

	_, err = d.db.ExecContext(
		ctx,
		query,
		article.ID,
		article.Source,
		article.SourceURL,
		article.Title,
		article.Summary,
		string(tagsJSON),
		publishedAt,
		article.ScrapedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

// GetArticle returns the stored article. The text body is not persisted, so
// TextContent is always empty.
func (d *Database) GetArticle(ctx context.Context, id string) (domain.EnrichedArticle, bool, error) {
	query := `select id, source, url, title, summary, tags, published_at, scraped_at
from articles where id = ?`

	var (
		article     domain.EnrichedArticle
		tagsJSON    string
		publishedAt sql.NullTime
		scrapedAt   time.Time
	)

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&article.ID,
		&article.Source,
		&article.SourceURL,
		&article.Title,
		&article.Summary,
		&tagsJSON,
		&publishedAt,
		&scrapedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EnrichedArticle{}, false, nil
	}
	if err != nil {
		return domain.EnrichedArticle{}, false, fmt.Errorf("failed to scan row: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &article.Tags); err != nil {
		return domain.EnrichedArticle{}, false, fmt.Errorf("unmarshal tags: %w", err)
	}
	if article.Tags == nil {
		article.Tags = []string{}
	}

	if publishedAt.Valid {
		article.PublishedAt = publishedAt.Time.UTC()
	}
	article.ScrapedAt = scrapedAt.UTC()

	return article, true, nil
}

// ListArticles returns the most recently stored articles first.
func (d *Database) ListArticles(ctx context.Context, limit int) ([]domain.EnrichedArticle, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := "select id from articles order by created_at desc, scraped_at desc limit ?"

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			d.closeRows(ctx, rows, "ListArticles")
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		d.closeRows(ctx, rows, "ListArticles")
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	d.closeRows(ctx, rows, "ListArticles")

	articles := make([]domain.EnrichedArticle, 0, len(ids))
	for _, id := range ids {
		article, ok, err := d.GetArticle(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			articles = append(articles, article)
		}
	}

	return articles, nil
}

func (d *Database) Delivered(ctx context.Context, articleID string, channel string) (bool, error) {
	query := "select exists (select 1 from deliveries where article_id = ? and channel = ?)"

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, articleID, channel).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to scan row: %w", err)
	}

	return exists, nil
}

func (d *Database) MarkDelivered(ctx context.Context, articleID string, channel string) error {
	if strings.TrimSpace(articleID) == "" || strings.TrimSpace(channel) == "" {
		return errors.New("article ID or channel is empty")
	}

	query := "insert or ignore into deliveries (article_id, channel) values (?, ?)"

	if _, err := d.db.ExecContext(ctx, query, articleID, channel); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

func (d *Database) closeRows(ctx context.Context, rows *sql.Rows, operation string) {
	if err := rows.Close(); err != nil {
		d.log.ErrorContext(ctx, "Failed to close rows",
			"error", err,
			"operation", operation)
	}
}
