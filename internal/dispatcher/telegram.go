package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"
	"newsrelay/internal/markdown"
	"newsrelay/internal/ratelimiter"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	TelegramName = "telegram"

	telegramMessageMaxLength = 4096
	telegramSummaryMaxRunes  = 3000
	telegramTitleMaxRunes    = 256
)

type TelegramOptions struct {
	Token   string
	ChatIDs []string
	// ServerURL overrides the Bot API endpoint.
	ServerURL string
	Log       *slog.Logger
}

// Telegram sends articles to one chat as MarkdownV2 messages. Channels built
// by one NewTelegram call share the bot client and per-chat pacing.
type Telegram struct {
	bot     *bot.Bot
	chatID  string
	limiter *ratelimiter.RateLimiter
	log     *slog.Logger
}

// NewTelegram returns one channel per chat so every chat gets its own
// delivery record.
func NewTelegram(opts TelegramOptions) ([]*Telegram, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}

	var chatIDs []string
	seen := make(map[string]struct{}, len(opts.ChatIDs))
	for _, chatID := range opts.ChatIDs {
		chatID = strings.TrimSpace(chatID)
		if chatID == "" {
			continue
		}
		if _, ok := seen[chatID]; ok {
			continue
		}

		seen[chatID] = struct{}{}
		chatIDs = append(chatIDs, chatID)
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("telegram chat IDs are empty")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	botOpts := []bot.Option{bot.WithSkipGetMe()}
	if serverURL := strings.TrimSpace(opts.ServerURL); serverURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(serverURL))
	}

	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	limiter := ratelimiter.New(ratelimiter.TelegramChat, log)

	channels := make([]*Telegram, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		channels = append(channels, &Telegram{
			bot:     b,
			chatID:  chatID,
			limiter: limiter,
			log:     log,
		})
	}

	return channels, nil
}

func (t *Telegram) Name() string {
	return TelegramName + ":" + t.chatID
}

func (t *Telegram) Send(ctx context.Context, article domain.EnrichedArticle) error {
	if err := t.limiter.Wait(ctx, t.chatID); err != nil {
		return fmt.Errorf("wait for chat %s: %w", t.chatID, err)
	}

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      telegramMessage(article),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send message to chat %s: %w", t.chatID, err)
	}
	t.log.DebugContext(ctx, "Telegram message is sent",
		"chatID", t.chatID,
		"articleID", article.ID)

	return nil
}

func telegramMessage(article domain.EnrichedArticle) string {
	var b strings.Builder

	title := markdown.EscapeV2(markdown.Truncate(article.Title, telegramTitleMaxRunes))
	fmt.Fprintf(&b, "📰 *[%s](%s)*\n", title, markdown.EscapeV2URL(article.SourceURL))

	meta := article.Source
	if !article.PublishedAt.IsZero() {
		meta += " · " + article.PublishedAt.UTC().Format("2 Jan 2006")
	}
	if meta != "" {
		b.WriteString("_" + markdown.EscapeV2(meta) + "_\n")
	}

	if summary := strings.TrimSpace(article.Summary); summary != "" {
		b.WriteString("\n")
		b.WriteString(markdown.EscapeV2(markdown.Truncate(summary, telegramSummaryMaxRunes)))
		b.WriteString("\n")
	}

	hashtags := make([]string, 0, len(article.Tags))
	for _, tag := range article.Tags {
		if hashtag := toHashtag(tag); hashtag != "" {
			hashtags = append(hashtags, markdown.EscapeV2(hashtag))
		}
	}
	if len(hashtags) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(hashtags, " "))
	}

	message := strings.TrimRight(b.String(), "\n")
	if len(message) > telegramMessageMaxLength {
		// Escaping may have pushed a long summary over the limit, fall back
		// to the link alone.
		return fmt.Sprintf("📰 *[%s](%s)*", title, markdown.EscapeV2URL(article.SourceURL))
	}

	return message
}

func toHashtag(tag string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(tag) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}

	hashtag := strings.Trim(b.String(), "_")
	if hashtag == "" {
		return ""
	}

	return "#" + hashtag
}
