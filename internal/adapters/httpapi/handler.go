package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"future-you/internal/domain"
	httpinfra "future-you/internal/infra/http"
	"future-you/internal/usecase/auth"
	"future-you/internal/usecase/companion"
	"future-you/internal/usecase/messages"
	"future-you/internal/usecase/stats"
)

const maxBodyBytes = 1 << 20

// AuthService регистрирует пользователей и выдаёт токены.
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

// MessageService управляет письмами пользователя.
type MessageService interface {
	Create(ctx context.Context, userID int64, in messages.CreateInput) (messages.View, error)
	Get(ctx context.Context, userID int64, id uuid.UUID) (messages.View, error)
	List(ctx context.Context, userID int64, status *domain.MessageStatus) ([]messages.View, error)
	MarkRead(ctx context.Context, userID int64, id uuid.UUID) (domain.Message, error)
	Archive(ctx context.Context, userID int64, id uuid.UUID) error
	Delete(ctx context.Context, userID int64, id uuid.UUID) error
	Quota(ctx context.Context, userID int64) (domain.MessageQuota, error)
	PreviewTiming(ctx context.Context, userID int64, content string, mode domain.TimingMode, explicit *time.Time) (messages.Preview, error)
}

// StatsService строит отчёты о доставке.
type StatsService interface {
	Overview(ctx context.Context) (stats.Overview, error)
	Upcoming(ctx context.Context, days int) ([]stats.Upcoming, error)
	Overdue(ctx context.Context) ([]stats.Overdue, error)
	Timeline(ctx context.Context, days int) (stats.Timeline, error)
	ForUser(ctx context.Context, userID int64) (stats.UserStats, error)
	Performance(ctx context.Context) (stats.Performance, error)
}

// CompanionService ведёт разговоры с ИИ-компаньоном.
type CompanionService interface {
	Companion(ctx context.Context, userID int64) (domain.Companion, error)
	UpdatePersonality(ctx context.Context, userID int64, personality, instructions string) (domain.Companion, error)
	Chat(ctx context.Context, userID int64, message string) (companion.ChatResult, error)
	DailyCheckIn(ctx context.Context, userID int64) (string, error)
	CraftMessage(ctx context.Context, userID int64, intent string) (domain.CraftedMessage, error)
}

// HealthCheck проверяет зависимости сервиса.
type HealthCheck func(ctx context.Context) error

// Handler обслуживает REST API.
type Handler struct {
	auth      AuthService
	messages  MessageService
	stats     StatsService
	companion CompanionService
	tokens    httpinfra.TokenParser
	health    HealthCheck
	log       zerolog.Logger
}

// NewHandler создаёт обработчики API. health может быть nil.
func NewHandler(authSvc AuthService, msgSvc MessageService, statsSvc StatsService, companionSvc CompanionService, tokens httpinfra.TokenParser, health HealthCheck, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:      authSvc,
		messages:  msgSvc,
		stats:     statsSvc,
		companion: companionSvc,
		tokens:    tokens,
		health:    health,
		log:       logger.With().Str("component", "httpapi").Logger(),
	}
}

// Mount регистрирует маршруты.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/register", h.handleRegister)
		api.Post("/auth/login", h.handleLogin)

		api.Group(func(protected chi.Router) {
			protected.Use(httpinfra.AuthMiddleware(h.tokens))

			protected.Post("/messages", h.handleCreateMessage)
			protected.Get("/messages", h.handleListMessages)
			protected.Get("/messages/{id}", h.handleGetMessage)
			protected.Delete("/messages/{id}", h.handleDeleteMessage)
			protected.Post("/messages/{id}/read", h.handleMarkRead)
			protected.Post("/messages/{id}/archive", h.handleArchive)

			protected.Post("/timing/preview", h.handlePreview)
			protected.Get("/quota", h.handleQuota)

			protected.Get("/delivery/me", h.handleMyStats)
			protected.Get("/delivery/stats", h.handleOverview)
			protected.Get("/delivery/upcoming", h.handleUpcoming)
			protected.Get("/delivery/overdue", h.handleOverdue)
			protected.Get("/delivery/timeline", h.handleTimeline)
			protected.Get("/delivery/performance", h.handlePerformance)

			protected.Get("/companion", h.handleCompanion)
			protected.Put("/companion/personality", h.handleUpdatePersonality)
			protected.Post("/companion/chat", h.handleChat)
			protected.Get("/companion/daily-checkin", h.handleDailyCheckIn)
			protected.Post("/companion/help-craft-message", h.handleCraftMessage)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	httpinfra.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	httpinfra.WriteError(w, status, errors.New(msg))
}

// fail переводит доменную ошибку в HTTP ответ.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httpinfra.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "user not found")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
	case errors.Is(err, domain.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "account is disabled")
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, domain.ErrInvalidTransition):
		httpinfra.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusPaymentRequired, "message limit reached for your tier")
	case errors.Is(err, domain.ErrCompanionUnavailable):
		h.log.Warn().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("компаньон не ответил")
		writeError(w, http.StatusServiceUnavailable, "companion is unavailable, try again later")
	default:
		h.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", httpinfra.RequestID(r)).
			Msg("ошибка обработки запроса")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := httpinfra.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func messageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return uuid.Nil, false
	}
	return id, true
}

func queryDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return 0, false
	}
	return days, true
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.log.Warn().Err(err).Msg("health check не прошёл")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.auth.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(sess))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(sess))
}

func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createMessageRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.messages.Create(r.Context(), userID, messages.CreateInput{
		Content:      req.Content,
		Type:         domain.MessageType(req.MessageType),
		Mode:         domain.TimingMode(req.DeliveryTiming),
		ScheduledFor: req.ScheduledFor,
		Category:     req.Category,
		Tags:         req.Tags,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMessageResponse(view))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var status *domain.MessageStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, valid := domain.ParseMessageStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		status = &s
	}
	views, err := h.messages.List(r.Context(), userID, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]messageResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, newMessageResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	view, err := h.messages.Get(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMessageResponse(view))
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	if err := h.messages.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	msg, err := h.messages.MarkRead(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": msg.Status, "read_at": msg.ReadAt})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	if err := h.messages.Archive(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.MessageStatusArchived)})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.messages.PreviewTiming(r.Context(), userID, req.Content, domain.TimingMode(req.DeliveryTiming), req.ScheduledFor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		ScheduledFor:    p.ScheduledFor,
		DeliveryTiming:  string(p.Mode),
		ConfidenceScore: p.Confidence,
		Explanation:     p.Explanation,
		Context:         p.Context,
	})
}

func (h *Handler) handleQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q, err := h.messages.Quota(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuotaResponse(q))
}

func (h *Handler) handleMyStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.stats.ForUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := h.stats.Overview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	items, err := h.stats.Upcoming(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.stats.Overdue(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	tl, err := h.stats.Timeline(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	p, err := h.stats.Performance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCompanion(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	c, err := h.companion.Companion(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompanionResponse(c))
}

func (h *Handler) handleUpdatePersonality(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req personalityRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.companion.UpdatePersonality(r.Context(), userID, req.Personality, req.CustomInstructions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompanionResponse(c))
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.companion.Chat(r.Context(), userID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:    res.Response,
		Emotion:     res.Emotion,
		Suggestions: res.Suggestions,
		Timestamp:   res.CreatedAt,
	})
}

func (h *Handler) handleDailyCheckIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	text, err := h.companion.DailyCheckIn(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": text})
}

func (h *Handler) handleCraftMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req craftRequest
	if !decode(w, r, &req) {
		return
	}
	crafted, err := h.companion.CraftMessage(r.Context(), userID, req.Intent)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crafted)
}
