package domain

// ActionType — тип действия workflow.
//
// Шесть поведенческих контрактов, определяющих как действие мутирует
// документ и куда документ перемещается после выполнения:
//
//   - COLLECT — создаёт новые документы из внешнего источника;
//     trigger-документ архивируется (или удаляется, если выход пуст)
//   - SPLIT   — разбивает документ на ноль и более новых; исходный удаляется
//   - DIVIDE  — как SPLIT, но выбирается резолвером для потоковой выдачи
//     из агрегата
//   - PUBLISH — назначает document_id, разрешает конфликт версий
//     и переносит документ в published-партицию
//   - CONSUME — читает опубликованный документ, мутирует только metadata
//   - UTILITY — административная задача вне графа docspec;
//     запись-триггер всегда удаляется
type ActionType string

const (
	ActionTypeCollect ActionType = "COLLECT"
	ActionTypeSplit   ActionType = "SPLIT"
	ActionTypeDivide  ActionType = "DIVIDE"
	ActionTypePublish ActionType = "PUBLISH"
	ActionTypeConsume ActionType = "CONSUME"
	ActionTypeUtility ActionType = "UTILITY"
)

// Valid возвращает true, если тип действия известен.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTypeCollect, ActionTypeSplit, ActionTypeDivide,
		ActionTypePublish, ActionTypeConsume, ActionTypeUtility:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ActionType.
func (t ActionType) String() string {
	return string(t)
}
