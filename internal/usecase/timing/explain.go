package timing

import (
	"fmt"
	"time"

	"future-you/internal/domain"
)

// Explain описывает, почему выбрана дата доставки, считая дни от now.
func Explain(mode domain.TimingMode, scheduledFor time.Time, mc MessageContext, now time.Time) string {
	days := int(scheduledFor.Sub(now) / day)
	if scheduledFor.Before(now) {
		// дата в прошлом: письмо будет доставлено при ближайшем обходе
		days = 0
	}
	return ExplainDays(mode, days, mc)
}

// Explain описывает решение движка. Для вычисленных дат берётся DelayDays,
// поэтому пояснение не зависит от времени, прошедшего после Compute.
func (d Decision) Explain(now time.Time) string {
	if d.Explicit {
		return Explain(d.Mode, d.ScheduledFor, d.Message, now)
	}
	return ExplainDays(d.Mode, max(d.DelayDays, 0), d.Message)
}

// ExplainDays формирует текст пояснения для задержки в days дней.
func ExplainDays(mode domain.TimingMode, days int, mc MessageContext) string {
	switch mode {
	case domain.TimingAIOptimal:
		switch {
		case mc.Category == CategoryAchievement:
			return fmt.Sprintf("AI suggests delivering in %d days - giving you time to work toward your goals.", days)
		case mc.Category == CategoryReflection:
			return fmt.Sprintf("AI suggests delivering in %d days - allowing perspective and growth.", days)
		case mc.EmotionalWeight == LevelHigh:
			return fmt.Sprintf("AI suggests delivering in %d days - giving you time to heal and grow stronger.", days)
		default:
			return fmt.Sprintf("AI determined %d days is optimal based on your patterns and this message's context.", days)
		}
	case domain.TimingMilestone:
		return fmt.Sprintf("This message will arrive at a meaningful milestone in %d days.", days)
	case domain.TimingEmotional:
		return fmt.Sprintf("AI will deliver this in %d days when you're emotionally ready to receive it.", days)
	case domain.TimingRandom:
		return fmt.Sprintf("Randomly scheduled for delivery in %d days - a surprise from your past self!", days)
	case domain.TimingSpecificDate, domain.TimingLocation, domain.TimingAchievement:
		return fmt.Sprintf("Scheduled for delivery in %d days.", days)
	default:
		return fmt.Sprintf("Scheduled for delivery in %d days.", days)
	}
}
