package timing

import (
	"math"
	"sync"
	"time"

	"future-you/internal/domain"
)

// Rand — источник случайности движка. *rand.Rand из math/rand/v2 удовлетворяет интерфейсу.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

const (
	day = 24 * time.Hour

	challengingFloorDays = 60.0
	positiveCeilingDays  = 90.0
	highEngagementFactor = 0.8
	jitterShare          = 0.2

	randomMinDays = 30
	randomMaxDays = 365

	emotionalBaseDays        = 60
	emotionalHeavyDays       = 120
	emotionalChallengingBump = 30
	emotionalCelebrationDays = 30
)

var milestoneDays = []int{90, 180, 365, 730, 1825}

// Input — данные для одного вычисления.
type Input struct {
	Content  string
	Mode     domain.TimingMode
	Explicit *time.Time
	History  History
}

// Decision — результат вычисления вместе с контекстом, на котором он основан.
type Decision struct {
	ScheduledFor time.Time
	Mode         domain.TimingMode
	// BaseDays — задержка до случайного сдвига. Для режимов без сдвига совпадает с DelayDays.
	BaseDays   float64
	DelayDays  int
	Message    MessageContext
	User       UserContext
	Confidence int
	// Explicit выставлен, если дата взята у пользователя без изменений.
	Explicit bool
}

// Snapshot сохраняется в письме как ai_context.
func (d Decision) Snapshot() map[string]any {
	return map[string]any{
		"urgency":              string(d.Message.Urgency),
		"emotional_weight":     string(d.Message.EmotionalWeight),
		"category":             d.Message.Category,
		"suggested_delay_days": d.Message.SuggestedDelayDays,
		"total_messages":       d.User.TotalMessages,
		"avg_gap_days":         d.User.AvgGapDays,
		"emotional_trend":      string(d.User.EmotionalTrend),
		"engagement":           string(d.User.Engagement),
		"base_days":            d.BaseDays,
		"delay_days":           d.DelayDays,
	}
}

// Engine вычисляет момент доставки. Не выполняет ввода-вывода; безопасен для конкурентного использования.
type Engine struct {
	mu  sync.Mutex
	rnd Rand
	now func() time.Time
}

// NewEngine создаёт движок. now == nil означает time.Now в UTC.
func NewEngine(rnd Rand, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{rnd: rnd, now: now}
}

// Now возвращает текущее время движка.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Compute вычисляет дату доставки. Функция тотальна: неизвестный режим даёт now + 30 дней.
func (e *Engine) Compute(in Input) Decision {
	now := e.now()
	if in.Mode == domain.TimingSpecificDate && in.Explicit != nil {
		return Decision{
			ScheduledFor: *in.Explicit,
			Mode:         in.Mode,
			Message:      AnalyzeMessage(in.Content),
			BaseDays:     in.Explicit.Sub(now).Hours() / 24,
			DelayDays:    int(in.Explicit.Sub(now) / day),
			Confidence:   100,
			Explicit:     true,
		}
	}

	d := Decision{
		Mode:    in.Mode,
		Message: AnalyzeMessage(in.Content),
		User:    BuildUserContext(in.History),
	}

	e.mu.Lock()
	switch in.Mode {
	case domain.TimingAIOptimal:
		d.BaseDays = aiOptimalBase(d.Message, d.User)
		jitter := (e.rnd.Float64()*2 - 1) * jitterShare * d.BaseDays
		d.DelayDays = int(math.Floor(d.BaseDays + jitter))
		d.Confidence = 80
	case domain.TimingMilestone:
		d.DelayDays = e.milestone(d.Message)
		d.Confidence = 70
	case domain.TimingEmotional:
		d.DelayDays = emotionalDays(d.Message, d.User)
		d.Confidence = 70
	case domain.TimingRandom:
		d.DelayDays = randomMinDays + e.rnd.IntN(randomMaxDays-randomMinDays+1)
		d.Confidence = 50
	case domain.TimingSpecificDate, domain.TimingLocation, domain.TimingAchievement:
		d.DelayDays = defaultDelayDays
		d.Confidence = 40
	default:
		d.DelayDays = defaultDelayDays
		d.Confidence = 40
	}
	e.mu.Unlock()

	if d.BaseDays == 0 {
		d.BaseDays = float64(d.DelayDays)
	}
	d.ScheduledFor = now.Add(time.Duration(d.DelayDays) * day)
	return d
}

// aiOptimalBase возвращает задержку до случайного сдвига.
// Для тяжёлого эмоционального фона нижняя граница 60 дней сохраняется и после множителя вовлечённости.
func aiOptimalBase(mc MessageContext, uc UserContext) float64 {
	base := float64(mc.SuggestedDelayDays)
	switch uc.EmotionalTrend {
	case TrendChallenging:
		base = math.Max(base, challengingFloorDays)
	case TrendPositive:
		base = math.Min(base, positiveCeilingDays)
	}
	if uc.Engagement == LevelHigh {
		base *= highEngagementFactor
		if uc.EmotionalTrend == TrendChallenging {
			base = math.Max(base, challengingFloorDays)
		}
	}
	return base
}

func (e *Engine) milestone(mc MessageContext) int {
	switch {
	case mc.EmotionalWeight == LevelHigh:
		return 365
	case mc.Category == CategoryAchievement:
		return 180
	default:
		return milestoneDays[e.rnd.IntN(3)]
	}
}

// emotionalDays применяет правила по порядку; праздничная категория проверяется последней и перекрывает остальные.
func emotionalDays(mc MessageContext, uc UserContext) int {
	days := emotionalBaseDays
	if mc.EmotionalWeight == LevelHigh {
		days = emotionalHeavyDays
	}
	if uc.EmotionalTrend == TrendChallenging {
		days += emotionalChallengingBump
	}
	if mc.Category == CategoryCelebration {
		days = emotionalCelebrationDays
	}
	return days
}
