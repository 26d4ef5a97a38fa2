package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

const channel = "email"

// HTTPMailer отправляет письма через HTTP API транзакционной почты.
type HTTPMailer struct {
	endpoint   *url.URL
	apiKey     string
	fromEmail  string
	fromName   string
	publicURL  string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

var _ domain.Notifier = (*HTTPMailer)(nil)

// Option настраивает HTTPMailer.
type Option func(*HTTPMailer)

// WithHTTPClient подменяет http клиент.
func WithHTTPClient(client *http.Client) Option {
	return func(m *HTTPMailer) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(m *HTTPMailer) {
		if timeout > 0 {
			m.httpClient.Timeout = timeout
		}
	}
}

// WithSender задаёт адрес и имя отправителя.
func WithSender(email, name string) Option {
	return func(m *HTTPMailer) {
		m.fromEmail = email
		m.fromName = name
	}
}

// WithPublicURL задаёт базовый адрес ссылок в письмах.
func WithPublicURL(publicURL string) Option {
	return func(m *HTTPMailer) {
		m.publicURL = publicURL
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From    address   `json:"from"`
	To      []address `json:"to"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
	HTML    string    `json:"html"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHTTPMailer создаёт клиента почтового API.
func NewHTTPMailer(endpoint, apiKey string, logger zerolog.Logger, opts ...Option) (*HTTPMailer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	m := &HTTPMailer{
		endpoint:   parsed,
		apiKey:     apiKey,
		fromEmail:  "hello@futureyou.app",
		fromName:   "Future You",
		publicURL:  "https://futureyou.app",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.With().Str("component", "mailer").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NotifyMessageReady реализует domain.Notifier.
func (m *HTTPMailer) NotifyMessageReady(ctx context.Context, n domain.MessageReadyNotice) bool {
	email, err := MessageReadyEmail(n, m.publicURL, m.now())
	return m.deliver(ctx, "message_ready", email, err)
}

// NotifyBacklog реализует domain.Notifier.
func (m *HTTPMailer) NotifyBacklog(ctx context.Context, n domain.BacklogNotice) bool {
	email, err := BacklogEmail(n, m.publicURL)
	return m.deliver(ctx, "reminder", email, err)
}

// NotifyWelcome реализует domain.Notifier.
func (m *HTTPMailer) NotifyWelcome(ctx context.Context, n domain.WelcomeNotice) bool {
	email, err := WelcomeEmail(n, m.publicURL)
	return m.deliver(ctx, "welcome", email, err)
}

func (m *HTTPMailer) deliver(ctx context.Context, kind string, email Email, renderErr error) bool {
	logger := m.log.With().Str("kind", kind).Int64("user", email.To.UserID).Logger()
	if renderErr != nil {
		logger.Error().Err(renderErr).Msg("не удалось собрать письмо")
		metrics.ObserveNotification(channel, kind, false)
		return false
	}
	if strings.TrimSpace(email.To.Email) == "" {
		logger.Warn().Msg("у адресата нет email")
		metrics.ObserveNotification(channel, kind, false)
		return false
	}
	start := time.Now()
	err := m.send(ctx, email)
	metrics.ObserveNetworkRequest("email", "send", kind, start, err)
	metrics.ObserveNotification(channel, kind, err == nil)
	if err != nil {
		logger.Error().Err(err).Msg("отправка письма не удалась")
		return false
	}
	logger.Debug().Msg("письмо отправлено")
	return true
}

func (m *HTTPMailer) send(ctx context.Context, email Email) error {
	payload := sendRequest{
		From:    address{Email: m.fromEmail, Name: m.fromName},
		To:      []address{{Email: email.To.Email, Name: email.To.Name}},
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("email api error: status=%d message=%s", resp.StatusCode, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
