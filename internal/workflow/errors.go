package workflow

import "errors"

// Ошибки валидации workflow-конфигурации.
// Обнаруживаются только при построении workflow; невалидная конфигурация
// фатальна для Refresh и оставляет активным предыдущий валидный снимок.
var (
	// ErrEmptyWorkflow — workflow не содержит действий.
	ErrEmptyWorkflow = errors.New("workflow has no actions")

	// ErrDuplicateActionName — несколько действий с одинаковым именем.
	ErrDuplicateActionName = errors.New("duplicate action name")

	// ErrUnknownActionType — неизвестный тип действия.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrMissingInput — действие не объявляет потребляемый docspec.
	ErrMissingInput = errors.New("action has no input docspec")

	// ErrMissingOutput — действие типа collect/split/divide/publish
	// не объявляет производимый docspec.
	ErrMissingOutput = errors.New("action has no output docspec")

	// ErrMissingProducer — потребляемый docspec не производится никаким
	// действием (синтетические trigger-docspec исключены из проверки).
	ErrMissingProducer = errors.New("consumed docspec has no producer")

	// ErrCyclicFlow — цикл в графе docspec→docspec.
	ErrCyclicFlow = errors.New("cyclic docspec flow detected")

	// ErrMissingSchedule — collect-действие без расписания.
	ErrMissingSchedule = errors.New("collect action has no schedule")

	// ErrBadSchedule — невалидное cron-выражение.
	ErrBadSchedule = errors.New("invalid schedule expression")

	// ErrBadState — docspec с нелегальным состоянием для данного типа действия.
	ErrBadState = errors.New("illegal docspec state for action type")
)

// ErrActionNotFound — действие отсутствует в текущем снимке workflow.
// Нормальная гонка при конкурентной переконфигурации: Agent деградирует
// её до ops-ошибки на документе, не до краха.
var ErrActionNotFound = errors.New("action not found in workflow")

// ValidationError — ошибка валидации с контекстом действия.
type ValidationError struct {
	ActionName string // имя действия, где произошла ошибка
	Field      string // поле, вызвавшее ошибку
	Message    string // описание
	Err        error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.ActionName != "" {
		return "action " + e.ActionName + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErr(actionName, field, message string, err error) *ValidationError {
	return &ValidationError{ActionName: actionName, Field: field, Message: message, Err: err}
}
