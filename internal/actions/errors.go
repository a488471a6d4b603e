package actions

import (
	"errors"
	"fmt"
)

// Ошибки и сигналы действий.
var (
	// ErrAbort — сигнал abort из действия. Не ошибка: результат текущего
	// выполнения отбрасывается, документ возвращается в pending-пул
	// нетронутым для будущей попытки.
	ErrAbort = errors.New("action aborted")

	// ErrUnknownImpl — фабрика для ключа реализации не зарегистрирована.
	ErrUnknownImpl = errors.New("unknown action implementation")

	// ErrBadConfig — конфигурация действия не прошла проверку фабрики.
	ErrBadConfig = errors.New("invalid action configuration")
)

// OpsError — ожидаемая операционная ошибка действия: проблема окружения
// или данных, с которой может работать оператор. Всё остальное, что
// возвращает действие, Agent классифицирует как dev-ошибку (баг).
type OpsError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *OpsError) Error() string { return e.Err.Error() }

// Unwrap возвращает базовую ошибку.
func (e *OpsError) Unwrap() error { return e.Err }

// OpsErrorf создаёт операционную ошибку.
func OpsErrorf(format string, args ...any) error {
	return &OpsError{Err: fmt.Errorf(format, args...)}
}

// IsOps возвращает true, если ошибка классифицирована как операционная.
func IsOps(err error) bool {
	var opsErr *OpsError
	return errors.As(err, &opsErr)
}
