package workflow

import (
	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Spec — авторское определение workflow: именованный набор действий.
// Авторинг в YAML (armagh-admin), каноническое хранение в JSON.
type Spec struct {
	// Name — имя workflow.
	Name string `json:"name" yaml:"name"`

	// Actions — действия в порядке объявления. Порядок объявления
	// определяет порядок постановки в pending_actions для общих docspec.
	Actions []domain.ActionDef `json:"actions" yaml:"actions"`
}

// normalize заполняет производные поля определения перед валидацией.
//
// Collect- и utility-действия стоят вне графа docspec: их вход —
// синтетический trigger-docspec, выводимый из имени действия.
func (s *Spec) normalize() {
	for i := range s.Actions {
		def := &s.Actions[i]
		switch def.Type {
		case domain.ActionTypeCollect, domain.ActionTypeUtility:
			if def.Input.IsZero() {
				def.Input = domain.DocSpec{
					Type:  domain.TriggerType(def.Name),
					State: domain.DocStateReady,
				}
			}
		}
	}
}
