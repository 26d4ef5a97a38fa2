package httpapi

import (
	"time"

	"github.com/google/uuid"

	"future-you/internal/domain"
	"future-you/internal/usecase/auth"
	"future-you/internal/usecase/messages"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type userResponse struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func newTokenResponse(s auth.Session) tokenResponse {
	return tokenResponse{
		AccessToken: s.Token,
		TokenType:   "bearer",
		User: userResponse{
			ID:               s.User.ID,
			Email:            s.User.Email,
			FullName:         s.User.FullName,
			SubscriptionTier: string(s.User.Tier),
			CreatedAt:        s.User.CreatedAt,
		},
	}
}

type createMessageRequest struct {
	Content        string     `json:"content"`
	MessageType    string     `json:"message_type"`
	DeliveryTiming string     `json:"delivery_timing"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
	Tags           []string   `json:"tags"`
	Category       string     `json:"category"`
}

type previewRequest struct {
	Content        string     `json:"content"`
	DeliveryTiming string     `json:"delivery_timing"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
}

type messageResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Content             string     `json:"content"`
	MessageType         string     `json:"message_type"`
	Status              string     `json:"status"`
	DeliveryTiming      string     `json:"delivery_timing"`
	ScheduledFor        *time.Time `json:"scheduled_for"`
	DeliveredAt         *time.Time `json:"delivered_at"`
	ReadAt              *time.Time `json:"read_at"`
	CreatedAt           time.Time  `json:"created_at"`
	Category            string     `json:"category"`
	Tags                []string   `json:"tags"`
	ConfidenceScore     int        `json:"confidence_score"`
	DeliveryExplanation string     `json:"delivery_explanation,omitempty"`
	ContentUnavailable  bool       `json:"content_unavailable"`
}

func newMessageResponse(v messages.View) messageResponse {
	m := v.Message
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return messageResponse{
		ID:                  m.ID,
		Content:             v.Content,
		MessageType:         string(m.Type),
		Status:              string(m.Status),
		DeliveryTiming:      string(m.TimingMode),
		ScheduledFor:        m.ScheduledFor,
		DeliveredAt:         m.DeliveredAt,
		ReadAt:              m.ReadAt,
		CreatedAt:           m.CreatedAt,
		Category:            m.Category,
		Tags:                tags,
		ConfidenceScore:     m.ConfidenceScore,
		DeliveryExplanation: v.Explanation,
		ContentUnavailable:  v.Unreadable,
	}
}

type previewResponse struct {
	ScheduledFor    time.Time      `json:"scheduled_for"`
	DeliveryTiming  string         `json:"delivery_timing"`
	ConfidenceScore int            `json:"confidence_score"`
	Explanation     string         `json:"delivery_explanation"`
	Context         map[string]any `json:"ai_context"`
}

type quotaResponse struct {
	Tier      string `json:"tier"`
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

func newQuotaResponse(q domain.MessageQuota) quotaResponse {
	return quotaResponse{
		Tier:      string(q.Plan.Tier),
		Plan:      q.Plan.Name,
		Limit:     q.Plan.MonthlyMessageLimit,
		Used:      q.UsedThisMonth,
		Remaining: q.Remaining(),
		Unlimited: q.Plan.Unlimited(),
	}
}

type personalityRequest struct {
	Personality        string `json:"personality"`
	CustomInstructions string `json:"custom_instructions"`
}

type companionResponse struct {
	Name               string     `json:"name"`
	Personality        string     `json:"personality"`
	CustomInstructions string     `json:"custom_instructions"`
	TotalConversations int        `json:"total_conversations"`
	LastInteractionAt  *time.Time `json:"last_interaction_at"`
}

func newCompanionResponse(c domain.Companion) companionResponse {
	return companionResponse{
		Name:               c.Name,
		Personality:        string(c.Personality),
		CustomInstructions: c.CustomInstructions,
		TotalConversations: c.TotalConversations,
		LastInteractionAt:  c.LastInteractionAt,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response    string    `json:"response"`
	Emotion     string    `json:"emotion,omitempty"`
	Suggestions []string  `json:"suggestions"`
	Timestamp   time.Time `json:"timestamp"`
}

type craftRequest struct {
	Intent string `json:"intent"`
}
