package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"future-you/internal/adapters/mailer"
	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

const previewLimit = 100

// Sender — часть BotAPI, которая нужна для отправки сообщений.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет уведомления в Telegram пользователям с привязанным чатом.
type Notifier struct {
	bot       Sender
	publicURL string
	log       zerolog.Logger
	now       func() time.Time
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт Telegram уведомитель.
func NewNotifier(bot Sender, publicURL string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		bot:       bot,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		log:       logger.With().Str("component", "telegram").Logger(),
		now:       time.Now,
	}
}

// NotifyMessageReady реализует domain.Notifier.
func (n *Notifier) NotifyMessageReady(ctx context.Context, notice domain.MessageReadyNotice) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "📬 Hi %s, a message you wrote to yourself %d days ago is ready to be opened.\n",
		notice.To.Name, mailer.DaysAgo(notice.CreatedAt, n.now()))
	if preview := mailer.Truncate(notice.Preview, previewLimit); preview != "" {
		fmt.Fprintf(&b, "\n«%s»\n", preview)
	}
	fmt.Fprintf(&b, "\n%s/messages/%s", n.publicURL, notice.MessageID)
	return n.send(ctx, "message_ready", notice.To, b.String())
}

// NotifyBacklog реализует domain.Notifier.
func (n *Notifier) NotifyBacklog(ctx context.Context, notice domain.BacklogNotice) bool {
	text := fmt.Sprintf("💭 You have %s from your past self waiting.\n%s/messages",
		mailer.PluralMessages(notice.Pending), n.publicURL)
	return n.send(ctx, "reminder", notice.To, text)
}

// NotifyWelcome реализует domain.Notifier.
func (n *Notifier) NotifyWelcome(ctx context.Context, notice domain.WelcomeNotice) bool {
	text := fmt.Sprintf("🎉 Welcome to Future You, %s! Write your first message: %s/messages/new", notice.To.Name, n.publicURL)
	return n.send(ctx, "welcome", notice.To, text)
}

func (n *Notifier) send(ctx context.Context, kind string, to domain.Recipient, text string) bool {
	if to.TelegramChatID == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.ObserveNotification("telegram", kind, false)
		return false
	}
	msg := tgbotapi.NewMessage(*to.TelegramChatID, text)
	msg.DisableWebPagePreview = true

	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", kind, start, err)
	metrics.ObserveNotification("telegram", kind, err == nil)
	if err != nil {
		n.log.Error().Err(err).Int64("user", to.UserID).Str("kind", kind).Msg("не удалось отправить сообщение в Telegram")
		return false
	}
	return true
}
