package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"newsrelay/internal/markdown"
	"strings"
)

const (
	SlackName = "slack"

	slackHeaderMaxRunes  = 150
	slackSectionMaxRunes = 3000
	slackFallbackText    = "News Update"
	publishedDateLayout  = "2006-01-02 15:04 MST"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// Slack posts Block Kit messages to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
	log        *slog.Logger
}

func NewSlack(webhookURL string, client *http.Client, log *slog.Logger) (*Slack, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook URL is empty")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Slack{
		webhookURL: webhookURL,
		client:     newHTTPClient(client),
		log:        log,
	}, nil
}

func (s *Slack) Name() string {
	return SlackName
}

func (s *Slack) Send(ctx context.Context, article domain.EnrichedArticle) error {
	if err := postJSON(ctx, s.client, s.webhookURL, slackMessage(article), s.log); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

func slackMessage(article domain.EnrichedArticle) slackPayload {
	published := "unknown"
	if !article.PublishedAt.IsZero() {
		published = article.PublishedAt.UTC().Format(publishedDateLayout)
	}

	tags := "none"
	if len(article.Tags) > 0 {
		tags = markdown.EscapeSlack(strings.Join(article.Tags, ", "))
	}

	var quoted strings.Builder
	summary := markdown.Truncate(markdown.EscapeSlack(article.Summary), slackSectionMaxRunes-32)
	for line := range strings.SplitSeq(summary, "\n") {
		quoted.WriteString(">")
		quoted.WriteString(line)
		quoted.WriteString("\n")
	}

	return slackPayload{
		Text: slackFallbackText,
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{
					Type: "plain_text",
					Text: markdown.Truncate(article.Title, slackHeaderMaxRunes),
				},
			},
			{
				Type: "context",
				Elements: []slackText{{
					Type: "mrkdwn",
					Text: fmt.Sprintf(
						"*Source:* %s\n*Date Published:* %s\n",
						markdown.EscapeSlack(article.Source),
						published,
					),
				}},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Tags:* _%s_\n", tags)},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: "*Summary*\n" + strings.TrimSuffix(quoted.String(), "\n")},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*URL:* <%s>\n", article.SourceURL)},
			},
		},
	}
}
