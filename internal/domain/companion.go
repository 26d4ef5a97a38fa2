package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// CompanionPersonality — стиль общения компаньона.
type CompanionPersonality string

const (
	PersonalityMotivationalCoach  CompanionPersonality = "motivational_coach"
	PersonalityWiseMentor         CompanionPersonality = "wise_mentor"
	PersonalitySupportiveFriend   CompanionPersonality = "supportive_friend"
	PersonalityPhilosophicalGuide CompanionPersonality = "philosophical_guide"
	PersonalityPlayfulBuddy       CompanionPersonality = "playful_buddy"
)

// ParsePersonality разбирает стиль компаньона без учёта регистра.
func ParsePersonality(raw string) (CompanionPersonality, error) {
	switch p := CompanionPersonality(strings.ToLower(strings.TrimSpace(raw))); p {
	case PersonalityMotivationalCoach, PersonalityWiseMentor, PersonalitySupportiveFriend,
		PersonalityPhilosophicalGuide, PersonalityPlayfulBuddy:
		return p, nil
	}
	return "", fmt.Errorf("%w: неизвестный стиль компаньона %q", ErrValidation, raw)
}

// Companion — настройки ИИ-компаньона пользователя.
type Companion struct {
	UserID             int64
	Name               string
	Personality        CompanionPersonality
	CustomInstructions string
	TotalConversations int
	LastInteractionAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CompanionExchange — одна реплика пользователя и ответ компаньона.
// Тексты хранятся зашифрованными ключом пользователя, эмоция — открыто.
type CompanionExchange struct {
	ID                int64
	UserID            int64
	UserMessage       string
	CompanionResponse string
	Emotion           string
	CreatedAt         time.Time
}

// Эмоции, которые распознаёт компаньон. Они же питают эмоциональный фон в движке тайминга.
const (
	EmotionHappy      = "happy"
	EmotionSad        = "sad"
	EmotionAnxious    = "anxious"
	EmotionExcited    = "excited"
	EmotionReflective = "reflective"
	EmotionFrustrated = "frustrated"
	EmotionHopeful    = "hopeful"
	EmotionNeutral    = "neutral"
)

var emotions = map[string]struct{}{
	EmotionHappy:      {},
	EmotionSad:        {},
	EmotionAnxious:    {},
	EmotionExcited:    {},
	EmotionReflective: {},
	EmotionFrustrated: {},
	EmotionHopeful:    {},
	EmotionNeutral:    {},
}

// NormalizeEmotion приводит ответ модели к одной из известных эмоций. Неизвестное значение — neutral.
func NormalizeEmotion(raw string) string {
	word := strings.ToLower(strings.TrimFunc(strings.TrimSpace(raw), func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if _, ok := emotions[word]; ok {
		return word
	}
	return EmotionNeutral
}

// CompanionReplyRequest — данные для ответа компаньона.
type CompanionReplyRequest struct {
	Personality  CompanionPersonality
	Instructions string
	UserName     string
	History      []CompanionExchange
	Message      string
}

// CraftedMessage — черновик письма в будущее, предложенный компаньоном.
type CraftedMessage struct {
	Draft           string `json:"draft_message"`
	SuggestedTiming string `json:"suggested_timing"`
	Reasoning       string `json:"reasoning"`
}

// CompanionModel генерирует ответы компаньона.
type CompanionModel interface {
	Reply(ctx context.Context, req CompanionReplyRequest) (string, error)
	DetectEmotion(ctx context.Context, text string) (string, error)
	DailyCheckIn(ctx context.Context, personality CompanionPersonality, userName string) (string, error)
	CraftMessage(ctx context.Context, personality CompanionPersonality, intent string) (CraftedMessage, error)
}

// CompanionRepo хранит компаньонов и историю разговоров.
type CompanionRepo interface {
	GetOrCreateCompanion(ctx context.Context, userID int64) (Companion, error)
	UpdateCompanion(ctx context.Context, userID int64, personality CompanionPersonality, instructions string) (Companion, error)
	// ListConversations возвращает последние limit реплик в хронологическом порядке.
	ListConversations(ctx context.Context, userID int64, limit int) ([]CompanionExchange, error)
	// SaveConversation сохраняет реплику и обновляет счётчики компаньона в одной транзакции.
	SaveConversation(ctx context.Context, ex CompanionExchange) (CompanionExchange, error)
}
