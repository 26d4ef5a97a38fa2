package timing

import (
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Trend — грубая оценка эмоционального фона пользователя.
type Trend string

const (
	TrendPositive    Trend = "positive"
	TrendChallenging Trend = "challenging"
	TrendStable      Trend = "stable"
)

const (
	// EmotionWindow — сколько последних эмоциональных меток учитывается.
	EmotionWindow = 50

	defaultGapDays      = 30.0
	positiveShare       = 0.6
	challengingShare    = 0.3
	highEngagementCount = 10
	highEngagementGap   = 7.0
)

var positiveEmotions = map[string]struct{}{
	"happy":   {},
	"excited": {},
	"hopeful": {},
}

// History — сырые данные о пользователе, из которых строится UserContext.
type History struct {
	MessageCreatedAt []time.Time
	Emotions         []string
}

// UserContext — проекция истории пользователя на одно вычисление.
type UserContext struct {
	TotalMessages  int
	AvgGapDays     float64
	EmotionalTrend Trend
	Engagement     Level
}

// BuildUserContext считает средний интервал между письмами, эмоциональный фон и вовлечённость.
func BuildUserContext(h History) UserContext {
	uc := UserContext{
		TotalMessages:  len(h.MessageCreatedAt),
		AvgGapDays:     avgGapDays(h.MessageCreatedAt),
		EmotionalTrend: emotionalTrend(h.Emotions),
	}
	switch {
	case uc.TotalMessages < 2:
		uc.Engagement = LevelLow
	case uc.TotalMessages >= highEngagementCount && uc.AvgGapDays <= highEngagementGap:
		uc.Engagement = LevelHigh
	default:
		uc.Engagement = LevelMedium
	}
	return uc
}

func avgGapDays(created []time.Time) float64 {
	if len(created) < 2 {
		return defaultGapDays
	}
	sorted := append([]time.Time(nil), created...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	// интервалы считаются в целых днях
	var total int
	for i := 1; i < len(sorted); i++ {
		total += int(sorted[i].Sub(sorted[i-1]) / (24 * time.Hour))
	}
	return float64(total) / float64(len(sorted)-1)
}

func emotionalTrend(emotions []string) Trend {
	if len(emotions) > EmotionWindow {
		emotions = emotions[:EmotionWindow]
	}
	if len(emotions) == 0 {
		return TrendStable
	}
	lower := cases.Lower(language.Und)
	var positive int
	for _, e := range emotions {
		if _, ok := positiveEmotions[lower.String(e)]; ok {
			positive++
		}
	}
	share := float64(positive) / float64(len(emotions))
	switch {
	case share > positiveShare:
		return TrendPositive
	case share < challengingShare:
		return TrendChallenging
	default:
		return TrendStable
	}
}
