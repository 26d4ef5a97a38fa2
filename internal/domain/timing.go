package domain

import (
	"fmt"
	"strings"
)

// TimingMode — стратегия выбора момента доставки.
//
// Набор значений закрыт: при добавлении нового режима нужно обновить TimingModes
// и ветвления движка тайминга (линтер exhaustive проверяет switch по этому типу).
type TimingMode string

const (
	TimingSpecificDate TimingMode = "specific_date"
	TimingAIOptimal    TimingMode = "ai_optimal"
	TimingRandom       TimingMode = "random"
	TimingMilestone    TimingMode = "milestone"
	TimingEmotional    TimingMode = "emotional"
	TimingLocation     TimingMode = "location"
	TimingAchievement  TimingMode = "achievement"
)

// TimingModes перечисляет все известные режимы.
var TimingModes = []TimingMode{
	TimingSpecificDate,
	TimingAIOptimal,
	TimingRandom,
	TimingMilestone,
	TimingEmotional,
	TimingLocation,
	TimingAchievement,
}

// ParseTimingMode разбирает режим без учёта регистра.
func ParseTimingMode(raw string) (TimingMode, error) {
	value := TimingMode(strings.ToLower(strings.TrimSpace(raw)))
	for _, mode := range TimingModes {
		if mode == value {
			return mode, nil
		}
	}
	return "", fmt.Errorf("%w: неизвестный режим доставки %q", ErrValidation, raw)
}
