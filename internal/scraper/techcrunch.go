package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"strings"
	"time"
)

const (
	TechCrunchName = "techcrunch"

	techCrunchBaseURL   = "https://techcrunch.com"
	wordPressDateLayout = "2006-01-02T15:04:05"
)

type wordPressRendered struct {
	Rendered string `json:"rendered"`
}

type wordPressPost struct {
	ID      int64             `json:"id"`
	DateGMT string            `json:"date_gmt"`
	Link    string            `json:"link"`
	Slug    string            `json:"slug"`
	Title   wordPressRendered `json:"title"`
	Content wordPressRendered `json:"content"`
	Excerpt wordPressRendered `json:"excerpt"`
	Yoast   struct {
		Author        string `json:"author"`
		OgDescription string `json:"og_description"`
	} `json:"yoast_head_json"`
}

// TechCrunch reads the latest posts from the WordPress REST API.
type TechCrunch struct {
	baseURL string
	limit   int
	client  *http.Client
	log     *slog.Logger
	now     func() time.Time
}

func NewTechCrunch(opts Options) *TechCrunch {
	opts = opts.withDefaults()

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = techCrunchBaseURL
	}

	return &TechCrunch{
		baseURL: baseURL,
		limit:   opts.Limit,
		client:  opts.HTTPClient,
		log:     opts.Log,
		now:     time.Now,
	}
}

func (s *TechCrunch) Name() string {
	return TechCrunchName
}

func (s *TechCrunch) Scrape(ctx context.Context) ([]domain.Article, error) {
	postsURL := fmt.Sprintf("%s/wp-json/wp/v2/posts?per_page=%d", s.baseURL, s.limit)

	var posts []wordPressPost
	if err := getJSON(ctx, s.client, postsURL, &posts, s.log); err != nil {
		return nil, &FetchError{Source: TechCrunchName, URL: postsURL, Err: err}
	}

	scrapedAt := s.now().UTC()
	articles := make([]domain.Article, 0, min(len(posts), s.limit))

	for _, post := range posts {
		if len(articles) == s.limit {
			break
		}

		article, ok := s.parsePost(ctx, post, scrapedAt)
		if !ok {
			continue
		}

		articles = append(articles, article)
	}

	return articles, nil
}

func (s *TechCrunch) parsePost(
	ctx context.Context,
	post wordPressPost,
	scrapedAt time.Time,
) (domain.Article, bool) {
	title := fragmentText(post.Title.Rendered)
	if title == "" {
		title = strings.TrimSpace(post.Slug)
	}

	text := fragmentText(post.Content.Rendered)
	if text == "" {
		text = fragmentText(post.Excerpt.Rendered)
	}

	link := strings.TrimSpace(post.Link)

	article := domain.NewArticle(TechCrunchName, link, title, text, scrapedAt)
	if err := article.Validate(); err != nil {
		s.log.WarnContext(ctx, "Skipping TechCrunch post",
			"error", err,
			"postID", post.ID,
			"link", link)

		return domain.Article{}, false
	}

	article.Author = strings.TrimSpace(post.Yoast.Author)

	if post.DateGMT != "" {
		published, err := time.ParseInLocation(wordPressDateLayout, post.DateGMT, time.UTC)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to parse TechCrunch post date",
				"error", err,
				"postID", post.ID,
				"date", post.DateGMT)
		} else {
			article.PublishedAt = published
		}
	}

	return article, true
}
