package delivery

import (
	"fmt"
	"strings"
)

// FailureAction — реакция рассылки на отказ внешнего компонента.
type FailureAction string

const (
	// ActionRetryNextTick оставляет письмо в scheduled до следующего прохода.
	ActionRetryNextTick FailureAction = "retry_next_tick"
	// ActionIgnore продолжает доставку, несмотря на отказ.
	ActionIgnore FailureAction = "ignore"
)

// ParseFailureAction разбирает значение из конфигурации.
func ParseFailureAction(raw string) (FailureAction, error) {
	switch a := FailureAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionRetryNextTick, ActionIgnore:
		return a, nil
	}
	return "", fmt.Errorf("неизвестная реакция на отказ %q", raw)
}

// Policy — таблица реакций на отказы: компонент -> действие.
type Policy struct {
	DecryptFailure FailureAction
	NotifyFailure  FailureAction
}

// DefaultPolicy: расшифровка блокирует доставку, уведомление — нет.
func DefaultPolicy() Policy {
	return Policy{
		DecryptFailure: ActionRetryNextTick,
		NotifyFailure:  ActionIgnore,
	}
}

// ParsePolicy собирает политику из строковых значений конфигурации. Пустые значения берутся по умолчанию.
func ParsePolicy(decrypt, notify string) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(decrypt) != "" {
		a, err := ParseFailureAction(decrypt)
		if err != nil {
			return Policy{}, fmt.Errorf("decrypt: %w", err)
		}
		p.DecryptFailure = a
	}
	if strings.TrimSpace(notify) != "" {
		a, err := ParseFailureAction(notify)
		if err != nil {
			return Policy{}, fmt.Errorf("notify: %w", err)
		}
		p.NotifyFailure = a
	}
	return p, nil
}
