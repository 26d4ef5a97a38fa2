package notify

import (
	"context"

	"future-you/internal/domain"
)

// Fanout отправляет уведомление во все каналы. Успех, если сработал хотя бы один.
type Fanout struct {
	channels []domain.Notifier
}

var _ domain.Notifier = (*Fanout)(nil)

// NewFanout собирает каналы уведомлений. nil каналы пропускаются.
func NewFanout(channels ...domain.Notifier) *Fanout {
	f := &Fanout{}
	for _, ch := range channels {
		if ch != nil {
			f.channels = append(f.channels, ch)
		}
	}
	return f
}

func (f *Fanout) each(send func(domain.Notifier) bool) bool {
	delivered := false
	for _, ch := range f.channels {
		if send(ch) {
			delivered = true
		}
	}
	return delivered
}

// NotifyMessageReady реализует domain.Notifier.
func (f *Fanout) NotifyMessageReady(ctx context.Context, n domain.MessageReadyNotice) bool {
	return f.each(func(ch domain.Notifier) bool { return ch.NotifyMessageReady(ctx, n) })
}

// NotifyBacklog реализует domain.Notifier.
func (f *Fanout) NotifyBacklog(ctx context.Context, n domain.BacklogNotice) bool {
	return f.each(func(ch domain.Notifier) bool { return ch.NotifyBacklog(ctx, n) })
}

// NotifyWelcome реализует domain.Notifier.
func (f *Fanout) NotifyWelcome(ctx context.Context, n domain.WelcomeNotice) bool {
	return f.each(func(ch domain.Notifier) bool { return ch.NotifyWelcome(ctx, n) })
}
