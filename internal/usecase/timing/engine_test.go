package timing

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"future-you/internal/domain"
)

var testNow = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(seed uint64) *Engine {
	return NewEngine(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), func() time.Time { return testNow })
}

func delayDays(d Decision) float64 {
	return d.ScheduledFor.Sub(testNow).Hours() / 24
}

func TestSpecificDateIsReturnedUnchanged(t *testing.T) {
	engine := newTestEngine(1)
	dates := []time.Time{
		testNow.Add(17*24*time.Hour + 3*time.Minute),
		testNow.Add(-time.Hour),
		time.Date(2030, time.July, 4, 9, 30, 0, 0, time.FixedZone("EST", -5*3600)),
	}
	for _, date := range dates {
		date := date
		d := engine.Compute(Input{Content: "remember this", Mode: domain.TimingSpecificDate, Explicit: &date})
		require.True(t, d.ScheduledFor.Equal(date), "ожидали %v, получили %v", date, d.ScheduledFor)
		assert.True(t, d.Explicit)
	}
}

func TestSpecificDateWithoutDateFallsBackToDefault(t *testing.T) {
	d := newTestEngine(1).Compute(Input{Content: "hello", Mode: domain.TimingSpecificDate})
	assert.Equal(t, 30.0, delayDays(d))
}

func TestRandomStaysWithinBounds(t *testing.T) {
	engine := newTestEngine(42)
	low := testNow.Add(30 * 24 * time.Hour)
	high := testNow.Add(365 * 24 * time.Hour)
	seen := map[int]struct{}{}
	for i := 0; i < 1000; i++ {
		d := engine.Compute(Input{Content: "whatever", Mode: domain.TimingRandom})
		require.False(t, d.ScheduledFor.Before(low), "выборка %d: %v раньше нижней границы", i, d.ScheduledFor)
		require.False(t, d.ScheduledFor.After(high), "выборка %d: %v позже верхней границы", i, d.ScheduledFor)
		seen[d.DelayDays] = struct{}{}
	}
	assert.Greater(t, len(seen), 100, "распределение должно покрывать диапазон")
}

func TestAIOptimalChallengingFloor(t *testing.T) {
	contents := []string{
		"don't forget the keys",
		"happy birthday to me",
		"plain note",
		"I learned a lot",
	}
	users := []UserContext{
		{EmotionalTrend: TrendChallenging, Engagement: LevelMedium},
		{EmotionalTrend: TrendChallenging, Engagement: LevelHigh},
		{EmotionalTrend: TrendChallenging, Engagement: LevelLow},
	}
	for _, content := range contents {
		for _, uc := range users {
			base := aiOptimalBase(AnalyzeMessage(content), uc)
			assert.GreaterOrEqual(t, base, 60.0, "%q при вовлечённости %s", content, uc.Engagement)
		}
	}

	engine := newTestEngine(7)
	history := History{Emotions: []string{"sad", "anxious", "tired", "sad"}}
	for i := 0; i < 200; i++ {
		d := engine.Compute(Input{Content: "important errand", Mode: domain.TimingAIOptimal, History: history})
		require.Equal(t, TrendChallenging, d.User.EmotionalTrend)
		require.GreaterOrEqual(t, d.BaseDays, 60.0)
	}
}

func TestAIOptimalPositiveCeilingAndEngagement(t *testing.T) {
	mc := AnalyzeMessage("I learned something")
	require.Equal(t, 365, mc.SuggestedDelayDays)

	assert.Equal(t, 90.0, aiOptimalBase(mc, UserContext{EmotionalTrend: TrendPositive, Engagement: LevelMedium}))
	assert.InDelta(t, 72.0, aiOptimalBase(mc, UserContext{EmotionalTrend: TrendPositive, Engagement: LevelHigh}), 1e-9)
	assert.Equal(t, 365.0, aiOptimalBase(mc, UserContext{EmotionalTrend: TrendStable, Engagement: LevelMedium}))
}

func TestStrugglingMessageUnderAIOptimal(t *testing.T) {
	engine := newTestEngine(2024)
	for i := 0; i < 500; i++ {
		d := engine.Compute(Input{Content: "I'm really struggling with this difficult time", Mode: domain.TimingAIOptimal})
		require.Equal(t, LevelHigh, d.Message.EmotionalWeight)
		require.Equal(t, CategoryGeneral, d.Message.Category)
		require.Equal(t, 90, d.Message.SuggestedDelayDays)
		require.Equal(t, TrendStable, d.User.EmotionalTrend)
		require.Equal(t, 90.0, d.BaseDays)
		days := delayDays(d)
		require.GreaterOrEqual(t, days, 72.0)
		require.LessOrEqual(t, days, 108.0)
	}
}

func TestAchievementMilestoneIsExact(t *testing.T) {
	engine := newTestEngine(3)
	for i := 0; i < 50; i++ {
		d := engine.Compute(Input{Content: "I achieved my goal today!", Mode: domain.TimingMilestone})
		require.Equal(t, CategoryAchievement, d.Message.Category)
		require.Equal(t, 180.0, delayDays(d))
	}
}

func TestMilestoneChoices(t *testing.T) {
	engine := newTestEngine(11)
	heavy := engine.Compute(Input{Content: "grief and loss", Mode: domain.TimingMilestone})
	assert.Equal(t, 365.0, delayDays(heavy))

	allowed := map[int]bool{90: true, 180: true, 365: true}
	seen := map[int]bool{}
	for i := 0; i < 300; i++ {
		d := engine.Compute(Input{Content: "just a note", Mode: domain.TimingMilestone})
		require.True(t, allowed[d.DelayDays], "неожиданная веха %d", d.DelayDays)
		seen[d.DelayDays] = true
	}
	assert.Len(t, seen, 3)
}

func TestEmotionalMode(t *testing.T) {
	challenging := History{Emotions: []string{"sad", "sad", "angry"}}
	tests := []struct {
		name    string
		content string
		history History
		want    float64
	}{
		{name: "base", content: "a plain note", want: 60},
		{name: "heavy", content: "this is a hard time", want: 120},
		{name: "challenging trend", content: "a plain note", history: challenging, want: 90},
		{name: "heavy and challenging", content: "so much pain", history: challenging, want: 150},
		{name: "celebration wins over everything", content: "pain, but I am proud", history: challenging, want: 30},
	}
	engine := newTestEngine(5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Compute(Input{Content: tt.content, Mode: domain.TimingEmotional, History: tt.history})
			assert.Equal(t, tt.want, delayDays(d))
		})
	}
}

func TestUnhandledModesUseDefaultDelay(t *testing.T) {
	engine := newTestEngine(9)
	for _, mode := range []domain.TimingMode{domain.TimingLocation, domain.TimingAchievement, "", "teleport"} {
		d := engine.Compute(Input{Content: "I achieved my goal", Mode: mode})
		assert.Equal(t, 30.0, delayDays(d), "режим %q", mode)
	}
}

func TestComputedDateIsNeverInThePast(t *testing.T) {
	engine := newTestEngine(77)
	for _, mode := range domain.TimingModes {
		for i := 0; i < 100; i++ {
			d := engine.Compute(Input{Content: "important: remember what you learned", Mode: mode})
			require.False(t, d.ScheduledFor.Before(testNow), "режим %s", mode)
		}
	}
}

func TestSameSeedIsReproducible(t *testing.T) {
	a := newTestEngine(123)
	b := newTestEngine(123)
	for i := 0; i < 20; i++ {
		in := Input{Content: "dream big", Mode: domain.TimingAIOptimal}
		require.Equal(t, a.Compute(in).ScheduledFor, b.Compute(in).ScheduledFor)
	}
}
