package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"future-you/internal/domain"
	"future-you/internal/usecase/auth"
	"future-you/internal/usecase/companion"
	"future-you/internal/usecase/messages"
	"future-you/internal/usecase/stats"
)

const goodToken = "good-token"

type stubTokens struct{}

func (stubTokens) Parse(token string) (int64, error) {
	if token == goodToken {
		return 1, nil
	}
	return 0, errors.New("invalid")
}

type fakeAuth struct{}

func (fakeAuth) Register(_ context.Context, email, password, name string) (auth.Session, error) {
	if email == "taken@example.com" {
		return auth.Session{}, domain.ErrEmailTaken
	}
	if len(password) < 8 {
		return auth.Session{}, fmt.Errorf("%w: password too short", domain.ErrValidation)
	}
	return auth.Session{Token: goodToken, User: domain.User{ID: 1, Email: email, FullName: name, Tier: domain.TierFree}}, nil
}

func (fakeAuth) Login(_ context.Context, email, password string) (auth.Session, error) {
	if password != "correct horse" {
		return auth.Session{}, domain.ErrInvalidCredentials
	}
	return auth.Session{Token: goodToken, User: domain.User{ID: 1, Email: email}}, nil
}

type fakeMessages struct {
	views    map[uuid.UUID]messages.View
	created  messages.CreateInput
	statuses []*domain.MessageStatus
	err      error
}

func (f *fakeMessages) Create(_ context.Context, _ int64, in messages.CreateInput) (messages.View, error) {
	f.created = in
	if f.err != nil {
		return messages.View{}, f.err
	}
	when := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	v := messages.View{
		Message: domain.Message{
			ID:           uuid.New(),
			UserID:       1,
			Status:       domain.MessageStatusScheduled,
			TimingMode:   in.Mode,
			ScheduledFor: &when,
		},
		Content:     in.Content,
		Explanation: "Scheduled for delivery in 30 days.",
	}
	return v, nil
}

func (f *fakeMessages) Get(_ context.Context, _ int64, id uuid.UUID) (messages.View, error) {
	v, ok := f.views[id]
	if !ok {
		return messages.View{}, domain.ErrMessageNotFound
	}
	return v, nil
}

func (f *fakeMessages) List(_ context.Context, _ int64, status *domain.MessageStatus) ([]messages.View, error) {
	f.statuses = append(f.statuses, status)
	var res []messages.View
	for _, v := range f.views {
		res = append(res, v)
	}
	return res, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, _ int64, id uuid.UUID) (domain.Message, error) {
	v, ok := f.views[id]
	if !ok {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	if v.Message.Status != domain.MessageStatusDelivered {
		return domain.Message{}, domain.ErrInvalidTransition
	}
	now := time.Now()
	v.Message.Status = domain.MessageStatusRead
	v.Message.ReadAt = &now
	return v.Message, nil
}

func (f *fakeMessages) Archive(_ context.Context, _ int64, id uuid.UUID) error {
	if _, ok := f.views[id]; !ok {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (f *fakeMessages) Delete(_ context.Context, _ int64, id uuid.UUID) error {
	if _, ok := f.views[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(f.views, id)
	return nil
}

func (f *fakeMessages) Quota(context.Context, int64) (domain.MessageQuota, error) {
	return domain.MessageQuota{Plan: domain.PlanForTier(domain.TierFree), UsedThisMonth: 2}, nil
}

func (f *fakeMessages) PreviewTiming(_ context.Context, _ int64, content string, mode domain.TimingMode, _ *time.Time) (messages.Preview, error) {
	if content == "" {
		return messages.Preview{}, fmt.Errorf("%w: content is empty", domain.ErrValidation)
	}
	return messages.Preview{Mode: mode, Confidence: 50, Explanation: "surprise"}, nil
}

type fakeStats struct {
	days []int
	err  error
}

func (f *fakeStats) Overview(context.Context) (stats.Overview, error) {
	return stats.Overview{TotalMessages: 3, ReadRate: 50}, f.err
}

func (f *fakeStats) Upcoming(_ context.Context, days int) ([]stats.Upcoming, error) {
	f.days = append(f.days, days)
	return []stats.Upcoming{}, f.err
}

func (f *fakeStats) Overdue(context.Context) ([]stats.Overdue, error) { return []stats.Overdue{}, f.err }

func (f *fakeStats) Timeline(_ context.Context, days int) (stats.Timeline, error) {
	f.days = append(f.days, days)
	return stats.Timeline{}, f.err
}

func (f *fakeStats) ForUser(context.Context, int64) (stats.UserStats, error) {
	return stats.UserStats{Unread: 2}, f.err
}

func (f *fakeStats) Performance(context.Context) (stats.Performance, error) {
	return stats.Performance{AvgWaitDays: 1.5}, f.err
}

type fakeCompanion struct {
	err         error
	personality string
	chats       []string
}

func (f *fakeCompanion) Companion(_ context.Context, userID int64) (domain.Companion, error) {
	return domain.Companion{UserID: userID, Name: "Future Buddy", Personality: domain.PersonalitySupportiveFriend}, f.err
}

func (f *fakeCompanion) UpdatePersonality(_ context.Context, userID int64, personality, instructions string) (domain.Companion, error) {
	p, err := domain.ParsePersonality(personality)
	if err != nil {
		return domain.Companion{}, err
	}
	f.personality = personality
	return domain.Companion{UserID: userID, Name: "Future Buddy", Personality: p, CustomInstructions: instructions}, nil
}

func (f *fakeCompanion) Chat(_ context.Context, _ int64, message string) (companion.ChatResult, error) {
	if f.err != nil {
		return companion.ChatResult{}, f.err
	}
	f.chats = append(f.chats, message)
	return companion.ChatResult{
		Response:    "tell me more",
		Emotion:     domain.EmotionHopeful,
		Suggestions: companion.Suggestions(message),
		CreatedAt:   time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeCompanion) DailyCheckIn(context.Context, int64) (string, error) {
	return "How are you today?", f.err
}

func (f *fakeCompanion) CraftMessage(_ context.Context, _ int64, intent string) (domain.CraftedMessage, error) {
	return domain.CraftedMessage{Draft: "Dear me, " + intent, SuggestedTiming: "1 year"}, f.err
}

type env struct {
	router    http.Handler
	msgs      *fakeMessages
	stats     *fakeStats
	companion *fakeCompanion
}

func newEnv(t *testing.T, health HealthCheck) env {
	t.Helper()
	msgs := &fakeMessages{views: make(map[uuid.UUID]messages.View)}
	st := &fakeStats{}
	comp := &fakeCompanion{}
	r := chi.NewRouter()
	NewHandler(fakeAuth{}, msgs, st, comp, stubTokens{}, health, zerolog.Nop()).Mount(r)
	return env{router: r, msgs: msgs, stats: st, companion: comp}
}

func (e env) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	e = newEnv(t, func(context.Context) error { return errors.New("db down") })
	rec = e.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"a@example.com","password":"long enough","full_name":"A"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, goodToken, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	rec = e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"taken@example.com","password":"long enough"}`, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"b@example.com","password":"short"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/register", `{not json`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"a@example.com","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "incorrect email or password", decodeBody(t, rec)["error"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv(t, nil)
	for _, path := range []string{"/api/v1/messages", "/api/v1/quota", "/api/v1/delivery/stats"} {
		rec := e.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCreateMessage(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/v1/messages",
		`{"content":"hello future","delivery_timing":"random","tags":["x"],"category":"misc"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "hello future", body["content"])
	assert.Equal(t, "scheduled", body["status"])
	assert.Equal(t, "Scheduled for delivery in 30 days.", body["delivery_explanation"])
	assert.Equal(t, domain.TimingRandom, e.msgs.created.Mode)
	assert.Equal(t, []string{"x"}, e.msgs.created.Tags)

	e.msgs.err = domain.ErrQuotaExceeded
	rec = e.do(t, http.MethodPost, "/api/v1/messages", `{"content":"again"}`, true)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	e.msgs.err = errors.New("db down")
	rec = e.do(t, http.MethodPost, "/api/v1/messages", `{"content":"again"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody(t, rec)["error"])
}

func TestMessageLifecycleRoutes(t *testing.T) {
	e := newEnv(t, nil)
	id := uuid.New()
	e.msgs.views[id] = messages.View{
		Message: domain.Message{ID: id, UserID: 1, Status: domain.MessageStatusDelivered},
		Content: "from the past",
	}

	rec := e.do(t, http.MethodGet, "/api/v1/messages/"+id.String(), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "from the past", body["content"])
	assert.Equal(t, false, body["content_unavailable"])

	broken := uuid.New()
	e.msgs.views[broken] = messages.View{
		Message:    domain.Message{ID: broken, UserID: 1, Status: domain.MessageStatusDelivered},
		Unreadable: true,
	}
	rec = e.do(t, http.MethodGet, "/api/v1/messages/"+broken.String(), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["content_unavailable"])

	rec = e.do(t, http.MethodGet, "/api/v1/messages/not-a-uuid", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/messages/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/messages/"+id.String()+"/read", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "read", decodeBody(t, rec)["status"])

	other := uuid.New()
	e.msgs.views[other] = messages.View{Message: domain.Message{ID: other, Status: domain.MessageStatusScheduled}}
	rec = e.do(t, http.MethodPost, "/api/v1/messages/"+other.String()+"/read", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/messages/"+id.String()+"/archive", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/v1/messages/"+id.String(), "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/v1/messages/"+id.String(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessagesStatusFilter(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/v1/messages?status=delivered", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	require.Len(t, e.msgs.statuses, 1)
	require.NotNil(t, e.msgs.statuses[0])
	assert.Equal(t, domain.MessageStatusDelivered, *e.msgs.statuses[0])

	rec = e.do(t, http.MethodGet, "/api/v1/messages?status=lost", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewAndQuota(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/v1/timing/preview", `{"content":"hi","delivery_timing":"random"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "surprise", decodeBody(t, rec)["delivery_explanation"])

	rec = e.do(t, http.MethodPost, "/api/v1/timing/preview", `{"content":""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/quota", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, float64(3), body["remaining"])
}

func TestDeliveryStatsRoutes(t *testing.T) {
	e := newEnv(t, nil)
	for _, path := range []string{
		"/api/v1/delivery/me",
		"/api/v1/delivery/stats",
		"/api/v1/delivery/upcoming?days=14",
		"/api/v1/delivery/overdue",
		"/api/v1/delivery/timeline",
		"/api/v1/delivery/performance",
	} {
		rec := e.do(t, http.MethodGet, path, "", true)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Equal(t, []int{14, 0}, e.stats.days)

	rec := e.do(t, http.MethodGet, "/api/v1/delivery/upcoming?days=-1", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.stats.err = errors.New("db down")
	rec = e.do(t, http.MethodGet, "/api/v1/delivery/stats", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCompanionRoutes(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/companion", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "supportive_friend", decodeBody(t, rec)["personality"])

	rec = e.do(t, http.MethodPost, "/api/v1/companion/chat", `{"message":"It was hard but I did it"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tell me more", body["response"])
	assert.Equal(t, "hopeful", body["emotion"])
	assert.Len(t, body["suggestions"], 1)
	assert.Equal(t, []string{"It was hard but I did it"}, e.companion.chats)

	rec = e.do(t, http.MethodPut, "/api/v1/companion/personality", `{"personality":"wise_mentor","custom_instructions":"short"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wise_mentor", decodeBody(t, rec)["personality"])

	rec = e.do(t, http.MethodPut, "/api/v1/companion/personality", `{"personality":"villain"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/companion/daily-checkin", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "How are you today?", decodeBody(t, rec)["message"])

	rec = e.do(t, http.MethodPost, "/api/v1/companion/help-craft-message", `{"intent":"graduation"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dear me, graduation", decodeBody(t, rec)["draft_message"])

	rec = e.do(t, http.MethodPost, "/api/v1/companion/chat", `{"message":"hi"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompanionUnavailable(t *testing.T) {
	e := newEnv(t, nil)
	e.companion.err = fmt.Errorf("%w: timeout", domain.ErrCompanionUnavailable)

	rec := e.do(t, http.MethodPost, "/api/v1/companion/chat", `{"message":"hi"}`, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
