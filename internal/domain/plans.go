package domain

import (
	"strings"
	"time"
)

// SubscriptionTier описывает тариф пользователя.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "free"
	TierPremium  SubscriptionTier = "premium"
	TierLifetime SubscriptionTier = "lifetime"
	TierUltra    SubscriptionTier = "ultra"
)

// TierPlan описывает ограничения тарифа. Нулевой лимит означает отсутствие ограничений.
type TierPlan struct {
	Tier                SubscriptionTier
	Name                string
	MonthlyMessageLimit int
}

var plans = map[SubscriptionTier]TierPlan{
	TierFree: {
		Tier:                TierFree,
		Name:                "Free",
		MonthlyMessageLimit: 5,
	},
	TierPremium: {
		Tier: TierPremium,
		Name: "Premium",
	},
	TierLifetime: {
		Tier: TierLifetime,
		Name: "Lifetime",
	},
	TierUltra: {
		Tier: TierUltra,
		Name: "Ultra",
	},
}

// PlanForTier возвращает тариф. Неизвестные значения трактуются как бесплатный тариф.
func PlanForTier(tier SubscriptionTier) TierPlan {
	if plan, ok := plans[SubscriptionTier(strings.ToLower(string(tier)))]; ok {
		return plan
	}
	return plans[TierFree]
}

// Unlimited сообщает, что тариф не ограничивает количество писем.
func (p TierPlan) Unlimited() bool {
	return p.MonthlyMessageLimit <= 0
}

// MessageQuota описывает расход месячного лимита.
type MessageQuota struct {
	Plan          TierPlan
	UsedThisMonth int
}

// Remaining возвращает оставшееся количество писем. -1 означает отсутствие лимитов.
func (q MessageQuota) Remaining() int {
	if q.Plan.Unlimited() {
		return -1
	}
	remaining := q.Plan.MonthlyMessageLimit - q.UsedThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Allowed сообщает, можно ли создать ещё одно письмо.
func (q MessageQuota) Allowed() bool {
	return q.Plan.Unlimited() || q.Remaining() > 0
}

// MonthStart возвращает начало календарного месяца в UTC, с которого считается лимит.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
