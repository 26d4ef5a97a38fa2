package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"future-you/internal/domain"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[int64]domain.User
	nextID  int64
	touched []int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]domain.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUser(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (m *memUsers) TouchLogin(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID int64) (string, error) { return fmt.Sprintf("token-%d", userID), nil }

type welcomeRecorder struct {
	sent []domain.WelcomeNotice
	ok   bool
}

func (w *welcomeRecorder) NotifyMessageReady(context.Context, domain.MessageReadyNotice) bool {
	return false
}

func (w *welcomeRecorder) NotifyBacklog(context.Context, domain.BacklogNotice) bool { return false }

func (w *welcomeRecorder) NotifyWelcome(_ context.Context, n domain.WelcomeNotice) bool {
	w.sent = append(w.sent, n)
	return w.ok
}

type events struct {
	recorded []domain.BusinessMetric
	err      error
}

func (e *events) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	e.recorded = append(e.recorded, m)
	return e.err
}

func newTestService(notifier domain.Notifier, ev *events) (*Service, *memUsers) {
	users := newMemUsers()
	svc := NewService(users, fakeTokens{}, func() (string, error) { return "key", nil }, notifier, ev, zerolog.Nop())
	svc.cost = bcrypt.MinCost
	return svc, users
}

func TestRegisterAndLogin(t *testing.T) {
	welcome := &welcomeRecorder{ok: true}
	ev := &events{}
	svc, users := newTestService(welcome, ev)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Alice@Example.com", "correct horse", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "token-1", sess.Token)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "key", sess.User.EncryptionKey)
	assert.NotEqual(t, "correct horse", sess.User.PasswordHash)
	require.Len(t, welcome.sent, 1)
	assert.Equal(t, "Alice", welcome.sent[0].To.Name)
	require.Len(t, ev.recorded, 1)
	assert.Equal(t, domain.BusinessMetricEventUserRegistered, ev.recorded[0].Event)

	login, err := svc.Login(ctx, " alice@example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "token-1", login.Token)
	assert.Equal(t, []int64{1}, users.touched)
	assert.NotNil(t, login.User.LastLoginAt)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(nil, &events{})
	_, err := svc.Register(context.Background(), "not-an-email", "long enough", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Register(context.Background(), "bob@example.com", "short", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Register(context.Background(), "bob@example.com", strings.Repeat("п", 40), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(nil, &events{})
	_, err := svc.Register(context.Background(), "bob@example.com", "long enough", "")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "BOB@example.com", "long enough", "")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterSurvivesNotifierAndMetricFailures(t *testing.T) {
	svc, _ := newTestService(&welcomeRecorder{ok: false}, &events{err: errors.New("db down")})
	sess, err := svc.Register(context.Background(), "carol@example.com", "long enough", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestLoginFailures(t *testing.T) {
	svc, users := newTestService(nil, &events{})
	ctx := context.Background()
	_, err := svc.Register(ctx, "dave@example.com", "long enough", "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "dave@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "long enough")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	u := users.byID[1]
	u.IsActive = false
	users.byID[1] = u
	_, err = svc.Login(ctx, "dave@example.com", "long enough")
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}
