package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"future-you/internal/domain"
)

var alice = domain.Recipient{UserID: 1, Email: "alice@example.com", Name: "Alice"}

func TestTruncateAndPlural(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short  ", 100))
	long := strings.Repeat("я", 120)
	got := Truncate(long, 100)
	assert.Equal(t, strings.Repeat("я", 100)+"...", got)

	assert.Equal(t, "1 message", PluralMessages(1))
	assert.Equal(t, "0 messages", PluralMessages(0))
	assert.Equal(t, "3 messages", PluralMessages(3))
}

func TestDaysAgo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, DaysAgo(now.AddDate(0, 0, -30).Add(-time.Hour), now))
	assert.Equal(t, 0, DaysAgo(now.Add(time.Hour), now))
	assert.Equal(t, 0, DaysAgo(time.Time{}, now))
}

func TestMessageReadyEmail(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	email, err := MessageReadyEmail(domain.MessageReadyNotice{
		To:        alice,
		Preview:   strings.Repeat("a", 150),
		MessageID: id,
		CreatedAt: now.AddDate(0, 0, -90),
	}, "https://futureyou.app/", now)
	require.NoError(t, err)

	assert.Contains(t, email.Text, "Hi Alice,")
	assert.Contains(t, email.Text, "90 days ago")
	assert.Contains(t, email.Text, strings.Repeat("a", 100)+"...")
	assert.NotContains(t, email.Text, strings.Repeat("a", 101))
	assert.Contains(t, email.Text, "https://futureyou.app/messages/"+id.String())
	assert.Contains(t, email.HTML, "<strong>90 days ago</strong>")
}

func TestBacklogEmailEscapesHTML(t *testing.T) {
	email, err := BacklogEmail(domain.BacklogNotice{
		To:      domain.Recipient{Email: "x@example.com", Name: "<b>Bob</b>"},
		Pending: 1,
	}, "https://futureyou.app")
	require.NoError(t, err)
	assert.Equal(t, "💭 You have 1 message waiting", email.Subject)
	assert.Contains(t, email.HTML, "&lt;b&gt;Bob&lt;/b&gt;")
	assert.Contains(t, email.Text, "You have 1 message from your past self")
}

func TestHTTPMailerSends(t *testing.T) {
	var got sendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := NewHTTPMailer(srv.URL, "secret", zerolog.Nop(), WithSender("noreply@futureyou.app", "Future You"))
	require.NoError(t, err)

	ok := m.NotifyWelcome(context.Background(), domain.WelcomeNotice{To: alice})
	require.True(t, ok)
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "noreply@futureyou.app", got.From.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "alice@example.com", got.To[0].Email)
	assert.Equal(t, "🎉 Welcome to Future You!", got.Subject)
}

func TestHTTPMailerFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid sender"}`))
	}))
	defer srv.Close()

	m, err := NewHTTPMailer(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, m.NotifyBacklog(context.Background(), domain.BacklogNotice{To: alice, Pending: 2}))
	assert.False(t, m.NotifyWelcome(context.Background(), domain.WelcomeNotice{To: domain.Recipient{Name: "no email"}}))
}

func TestHTTPMailerRespectsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m, err := NewHTTPMailer(srv.URL, "secret", zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, m.NotifyMessageReady(ctx, domain.MessageReadyNotice{To: alice, MessageID: uuid.New()}))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLogMailerAlwaysSucceeds(t *testing.T) {
	m := NewLogMailer("https://futureyou.app", zerolog.Nop())
	assert.True(t, m.NotifyWelcome(context.Background(), domain.WelcomeNotice{To: alice}))
	assert.True(t, m.NotifyBacklog(context.Background(), domain.BacklogNotice{To: alice, Pending: 4}))
}
