package domain

import "errors"

var (
	// ErrMessageNotFound возвращается, если письма нет или оно принадлежит другому пользователю.
	ErrMessageNotFound = errors.New("message not found")
	// ErrUserNotFound возвращается, если пользователь удалён или не существует.
	ErrUserNotFound = errors.New("user not found")
	// ErrDecryption сигнализирует о повреждённом шифротексте или неверном ключе.
	ErrDecryption = errors.New("decryption failed")
	// ErrInvalidTransition возвращается при попытке недопустимого перехода статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrQuotaExceeded возвращается, когда исчерпан месячный лимит тарифа.
	ErrQuotaExceeded = errors.New("message quota exceeded")
	// ErrEmailTaken возвращается при повторной регистрации.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled возвращается при входе в отключённую учётную запись.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrCompanionUnavailable возвращается, если модель компаньона не ответила.
	ErrCompanionUnavailable = errors.New("companion is unavailable")
	// ErrValidation оборачивает ошибки входных данных.
	ErrValidation = errors.New("validation error")
)
