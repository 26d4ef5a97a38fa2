package timing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level — грубая оценка признака письма.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

const (
	CategoryGeneral     = "general"
	CategoryAchievement = "achievement"
	CategoryReflection  = "reflection"
	CategoryCelebration = "celebration"
)

const defaultDelayDays = 30

// MessageContext — результат разбора текста письма в момент создания.
type MessageContext struct {
	Urgency            Level
	EmotionalWeight    Level
	Category           string
	SuggestedDelayDays int
}

type keywordRule struct {
	words []string
	apply func(*MessageContext)
}

// Порядок правил важен: более поздние перезаписывают SuggestedDelayDays и категорию.
var keywordRules = []keywordRule{
	{
		words: []string{"important", "remember", "don't forget", "crucial", "critical"},
		apply: func(mc *MessageContext) {
			mc.Urgency = LevelHigh
			mc.SuggestedDelayDays = 7
		},
	},
	{
		words: []string{"struggle", "difficult", "pain", "loss", "grief", "hard time"},
		apply: func(mc *MessageContext) {
			mc.EmotionalWeight = LevelHigh
			mc.SuggestedDelayDays = 90
		},
	},
	{
		words: []string{"goal", "achieve", "accomplish", "succeed", "dream"},
		apply: func(mc *MessageContext) {
			mc.Category = CategoryAchievement
			mc.SuggestedDelayDays = 180
		},
	},
	{
		words: []string{"learned", "realized", "understand", "wisdom", "insight"},
		apply: func(mc *MessageContext) {
			mc.Category = CategoryReflection
			mc.SuggestedDelayDays = 365
		},
	},
	{
		words: []string{"celebrate", "proud", "happy", "excited", "joy"},
		apply: func(mc *MessageContext) {
			mc.Category = CategoryCelebration
			mc.SuggestedDelayDays = 30
		},
	},
}

// AnalyzeMessage строит MessageContext по тексту письма.
func AnalyzeMessage(content string) MessageContext {
	mc := MessageContext{
		Urgency:            LevelLow,
		EmotionalWeight:    LevelMedium,
		Category:           CategoryGeneral,
		SuggestedDelayDays: defaultDelayDays,
	}
	// Caser хранит состояние, поэтому создаётся на каждый вызов.
	lowered := cases.Lower(language.Und).String(content)
	for _, rule := range keywordRules {
		if containsAny(lowered, rule.words) {
			rule.apply(&mc)
		}
	}
	return mc
}

// DerivedTags возвращает служебные теги, которые сохраняются вместе с письмом.
func (mc MessageContext) DerivedTags() []string {
	var tags []string
	if mc.Urgency == LevelHigh {
		tags = append(tags, "urgent")
	}
	if mc.EmotionalWeight == LevelHigh {
		tags = append(tags, "heavy")
	}
	if mc.Category != CategoryGeneral {
		tags = append(tags, mc.Category)
	}
	return tags
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
