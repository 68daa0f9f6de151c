package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

const maxContentPreview = 300

// telegramNotifier posts alerts to an operations chat through the Bot API.
type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram-backed notifier.
func NewTelegram(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	return &telegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (n *telegramNotifier) Notify(_ context.Context, item *domain.ProcessedItem) error {
	msg := tgbotapi.NewMessage(n.chatID, formatAlert(item))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}

	return nil
}

// formatAlert renders the HTML-mode alert body. Every field that can carry
// collector or adapter text is escaped; a stray < or & in review content
// would otherwise make the Bot API reject the whole message.
func formatAlert(item *domain.ProcessedItem) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>%s competitor signal</b> (%s, %s)\n",
		html.EscapeString(strings.ToUpper(string(item.Tier))),
		html.EscapeString(string(item.Kind)),
		html.EscapeString(string(item.Source))))

	if item.Metadata.CompetitorID != "" {
		sb.WriteString(fmt.Sprintf("Competitor: %s\n", html.EscapeString(item.Metadata.CompetitorID)))
	}

	for _, text := range item.InsightTexts() {
		sb.WriteString("• ")
		sb.WriteString(html.EscapeString(text))
		sb.WriteString("\n")
	}

	content := item.Content
	if len(content) > maxContentPreview {
		content = truncateRunes(content, maxContentPreview) + "…"
	}

	if content != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(content))
	}

	return sb.String()
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
