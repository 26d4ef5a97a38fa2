package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"future-you/internal/domain"
)

type fixed struct {
	ok    bool
	calls int
}

func (f *fixed) NotifyMessageReady(context.Context, domain.MessageReadyNotice) bool {
	f.calls++
	return f.ok
}

func (f *fixed) NotifyBacklog(context.Context, domain.BacklogNotice) bool {
	f.calls++
	return f.ok
}

func (f *fixed) NotifyWelcome(context.Context, domain.WelcomeNotice) bool {
	f.calls++
	return f.ok
}

func TestFanoutSucceedsWhenAnyChannelSucceeds(t *testing.T) {
	failing, working := &fixed{}, &fixed{ok: true}
	f := NewFanout(failing, nil, working)

	assert.True(t, f.NotifyMessageReady(context.Background(), domain.MessageReadyNotice{}))
	assert.Equal(t, 1, failing.calls, "все каналы получают уведомление")
	assert.Equal(t, 1, working.calls)
}

func TestFanoutFailsWhenAllChannelsFail(t *testing.T) {
	f := NewFanout(&fixed{}, &fixed{})
	assert.False(t, f.NotifyBacklog(context.Background(), domain.BacklogNotice{}))
	assert.False(t, NewFanout().NotifyWelcome(context.Background(), domain.WelcomeNotice{}))
}
