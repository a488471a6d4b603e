package domain

import (
	"fmt"
	"strings"
)

// DocState — состояние документа в workflow.
//
// Жизненный цикл:
//
//	WORKING → READY → PUBLISHED
//
// Переходы только вперёд, без пропусков. READY → PUBLISHED выполняет
// только publish-действие.
type DocState string

const (
	// DocStateWorking — документ редактируется, ещё не готов к обработке.
	DocStateWorking DocState = "WORKING"

	// DocStateReady — документ готов к обработке действиями workflow.
	DocStateReady DocState = "READY"

	// DocStatePublished — документ опубликован.
	DocStatePublished DocState = "PUBLISHED"
)

// Valid возвращает true, если состояние известно.
func (s DocState) Valid() bool {
	switch s {
	case DocStateWorking, DocStateReady, DocStatePublished:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет легальность перехода состояния.
// Разрешены только WORKING→READY и READY→PUBLISHED.
func (s DocState) CanTransitionTo(next DocState) bool {
	switch s {
	case DocStateWorking:
		return next == DocStateReady
	case DocStateReady:
		return next == DocStatePublished
	default:
		return false
	}
}

// DocSpec — пара (type, state), определяющая партицию хранения документа
// и набор действий, которые могут его потреблять.
type DocSpec struct {
	Type  string   `json:"type" yaml:"type"`
	State DocState `json:"state" yaml:"state"`
}

// String возвращает каноническое представление "type:STATE".
func (d DocSpec) String() string {
	return d.Type + ":" + string(d.State)
}

// IsZero возвращает true для пустого docspec.
func (d DocSpec) IsZero() bool {
	return d.Type == "" && d.State == ""
}

// TriggerTypePrefix — префикс типа синтетических trigger-документов.
//
// Trigger-документы создаются Collection Trigger'ом по расписанию,
// чтобы разбудить collect- или utility-действие. Префикс нейтрален
// к типу действия. Docspec trigger-документа не требует производителя
// при валидации workflow.
const TriggerTypePrefix = "__TRIGGER__"

// TriggerType возвращает тип trigger-документа для действия по расписанию.
func TriggerType(actionName string) string {
	return TriggerTypePrefix + actionName
}

// IsTrigger возвращает true, если docspec относится к trigger-документу.
func (d DocSpec) IsTrigger() bool {
	return strings.HasPrefix(d.Type, TriggerTypePrefix)
}

// ParseDocSpec парсит представление "type:STATE" обратно в DocSpec.
func ParseDocSpec(s string) (DocSpec, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return DocSpec{}, fmt.Errorf("invalid docspec %q", s)
	}
	spec := DocSpec{Type: s[:idx], State: DocState(s[idx+1:])}
	if !spec.State.Valid() {
		return DocSpec{}, fmt.Errorf("invalid docspec state %q", s[idx+1:])
	}
	return spec, nil
}
