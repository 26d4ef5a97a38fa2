package companion

import (
	"context"
	"fmt"
	"strings"

	"future-you/internal/domain"
)

// Stub отвечает без обращения к LLM. Используется, когда OPENAI_API_KEY не задан.
type Stub struct{}

var _ domain.CompanionModel = Stub{}

// NewStub создаёт офлайн-компаньона.
func NewStub() Stub { return Stub{} }

var stubReplies = []string{
	"That's a really thoughtful reflection! What do you think your future self would want to hear about this moment?",
	"I love that you're thinking about this. Have you considered writing a message to yourself about it?",
	"It sounds like this is important to you. How do you imagine you'll feel about this in a year?",
	"Thank you for sharing that with me. What's one thing you'd like to remember from today?",
	"That's a great insight! Would you like help crafting a message to capture this feeling?",
}

// Reply выбирает заготовленный ответ по длине истории, чтобы разговор не повторялся подряд.
func (Stub) Reply(_ context.Context, req domain.CompanionReplyRequest) (string, error) {
	return stubReplies[len(req.History)%len(stubReplies)], nil
}

// emotionLexicon проверяется по порядку: первое совпадение определяет эмоцию.
var emotionLexicon = []struct {
	emotion string
	words   []string
}{
	{domain.EmotionAnxious, []string{"anxious", "worried", "nervous", "afraid", "scared", "тревож", "волну", "боюсь", "страшно"}},
	{domain.EmotionFrustrated, []string{"frustrated", "annoyed", "angry", "stuck", "бесит", "злюсь", "раздраж"}},
	{domain.EmotionSad, []string{"sad", "lonely", "miss", "cry", "грустно", "одиноко", "скучаю", "плачу"}},
	{domain.EmotionExcited, []string{"excited", "can't wait", "thrilled", "amazing", "не терпится", "восторг"}},
	{domain.EmotionHappy, []string{"happy", "glad", "great", "proud", "achieved", "рад", "счастлив", "горжусь"}},
	{domain.EmotionHopeful, []string{"hope", "someday", "looking forward", "надеюсь", "мечтаю", "когда-нибудь"}},
}

// DetectEmotion определяет эмоцию по ключевым словам. Без совпадений — reflective:
// пользователь пишет компаньону, значит размышляет.
func (Stub) DetectEmotion(_ context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	for _, entry := range emotionLexicon {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.emotion, nil
			}
		}
	}
	return domain.EmotionReflective, nil
}

var stubCheckIns = map[domain.CompanionPersonality]string{
	domain.PersonalityMotivationalCoach:  "New day, new progress! What's one small win you're going after today?",
	domain.PersonalityWiseMentor:         "Good day. What is one thing you would like your future self to understand about today?",
	domain.PersonalitySupportiveFriend:   "Hey, just checking in. How are you feeling today, honestly?",
	domain.PersonalityPhilosophicalGuide: "What would make today meaningful, not just productive?",
	domain.PersonalityPlayfulBuddy:       "Rise and shine! If today were a movie, what would its title be?",
}

// DailyCheckIn возвращает приветствие для выбранного стиля.
func (Stub) DailyCheckIn(_ context.Context, personality domain.CompanionPersonality, userName string) (string, error) {
	text, ok := stubCheckIns[personality]
	if !ok {
		text = stubCheckIns[domain.PersonalitySupportiveFriend]
	}
	if userName != "" {
		text = userName + ", " + strings.ToLower(text[:1]) + text[1:]
	}
	return text, nil
}

// CraftMessage собирает черновик по шаблону.
func (Stub) CraftMessage(_ context.Context, _ domain.CompanionPersonality, intent string) (domain.CraftedMessage, error) {
	intent = strings.TrimSpace(intent)
	return domain.CraftedMessage{
		Draft:           fmt.Sprintf("Dear future me, today I'm thinking about %s. I hope you remember how this felt and how far you've come since.", intent),
		SuggestedTiming: "6 months",
		Reasoning:       "Half a year is long enough to see change and short enough to still remember this moment.",
	}, nil
}
