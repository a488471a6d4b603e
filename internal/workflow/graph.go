package workflow

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// cronParser — парсер cron-выражений расписаний collect/utility-действий.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Workflow — скомпилированный иммутабельный снимок workflow-конфигурации.
//
// Agents читают снимок как copy-on-read: снимок никогда не мутируется
// на месте, Refresh подменяет его целиком.
type Workflow struct {
	// Name — имя workflow.
	Name string

	// Generation — поколение конфигурации из хранилища.
	Generation int64

	// LoadedAt — время компиляции снимка.
	LoadedAt time.Time

	actions  map[string]*domain.ActionDef
	byInput  map[string][]*domain.ActionDef
	dividers map[string][]*domain.ActionDef
	ordered  []*domain.ActionDef
}

// Get возвращает определение действия по имени.
func (w *Workflow) Get(name string) (*domain.ActionDef, bool) {
	def, ok := w.actions[name]
	return def, ok
}

// ActionsForDocSpec возвращает упорядоченный список имён действий,
// потребляющих данный docspec. Пустой список — валидное терминальное
// состояние, не ошибка.
func (w *Workflow) ActionsForDocSpec(spec domain.DocSpec) []string {
	defs := w.byInput[spec.String()]
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}

// DividerForDocSpec возвращает divide-действие, зарегистрированное для
// docspec. Ожидается не более одного на docspec; при нескольких побеждает
// первое по порядку объявления (структурно не запрещено, см. ambiguous
// в Validate).
func (w *Workflow) DividerForDocSpec(spec domain.DocSpec) (*domain.ActionDef, bool) {
	defs := w.dividers[spec.String()]
	if len(defs) == 0 {
		return nil, false
	}
	return defs[0], true
}

// ScheduledDefs возвращает активные действия с расписанием
// (collect и utility) в порядке объявления.
func (w *Workflow) ScheduledDefs() []*domain.ActionDef {
	var out []*domain.ActionDef
	for _, def := range w.ordered {
		if def.Schedule != "" {
			out = append(out, def)
		}
	}
	return out
}

// Compile валидирует определение workflow и строит иммутабельный снимок.
//
// Валидация:
//   - уникальность и непустота имён действий, известность типов
//   - легальность docspec для типа (publish производит PUBLISHED,
//     consume потребляет PUBLISHED и т.д.)
//   - расписание обязательно и cron-валидно для collect/utility
//   - каждый потребляемый docspec имеет производителя, кроме
//     синтетических trigger-docspec
//   - граф docspec→docspec ацикличен (сортировка Кана)
//
// Производимый, но никем не потребляемый docspec — предупреждение,
// не ошибка; предупреждения возвращаются вторым значением.
func Compile(spec *Spec, generation int64) (*Workflow, []string, error) {
	spec.normalize()

	if len(spec.Actions) == 0 {
		return nil, nil, ErrEmptyWorkflow
	}

	w := &Workflow{
		Name:       spec.Name,
		Generation: generation,
		LoadedAt:   time.Now().UTC(),
		actions:    make(map[string]*domain.ActionDef, len(spec.Actions)),
		byInput:    make(map[string][]*domain.ActionDef),
		dividers:   make(map[string][]*domain.ActionDef),
	}

	for i := range spec.Actions {
		def := &spec.Actions[i]
		if err := validateDef(def); err != nil {
			return nil, nil, err
		}
		if _, dup := w.actions[def.Name]; dup {
			return nil, nil, validationErr(def.Name, "name",
				fmt.Sprintf("duplicate action name %q", def.Name), ErrDuplicateActionName)
		}
		w.actions[def.Name] = def
		if !def.Active {
			continue
		}
		w.ordered = append(w.ordered, def)
		w.byInput[def.Input.String()] = append(w.byInput[def.Input.String()], def)
		if def.Type == domain.ActionTypeDivide {
			w.dividers[def.Input.String()] = append(w.dividers[def.Input.String()], def)
		}
	}

	warnings := w.checkFlow(spec)

	if err := w.checkAcyclic(spec); err != nil {
		return nil, nil, err
	}

	return w, warnings, nil
}

// validateDef проверяет одно определение действия.
func validateDef(def *domain.ActionDef) error {
	if def.Name == "" {
		return validationErr("", "name", "action has empty name", ErrDuplicateActionName)
	}
	if !def.Type.Valid() {
		return validationErr(def.Name, "type",
			fmt.Sprintf("unknown action type %q", def.Type), ErrUnknownActionType)
	}
	if def.Input.IsZero() || !def.Input.State.Valid() {
		return validationErr(def.Name, "input", "missing or invalid input docspec", ErrMissingInput)
	}

	switch def.Type {
	case domain.ActionTypeCollect, domain.ActionTypeSplit, domain.ActionTypeDivide:
		if def.Output.IsZero() || !def.Output.State.Valid() {
			return validationErr(def.Name, "output", "missing output docspec", ErrMissingOutput)
		}
		if def.Output.State == domain.DocStatePublished {
			return validationErr(def.Name, "output",
				"only publish actions produce PUBLISHED documents", ErrBadState)
		}
	case domain.ActionTypePublish:
		if def.Output.IsZero() {
			return validationErr(def.Name, "output", "missing output docspec", ErrMissingOutput)
		}
		if def.Output.State != domain.DocStatePublished {
			return validationErr(def.Name, "output",
				"publish actions must produce a PUBLISHED docspec", ErrBadState)
		}
		if def.Input.State != domain.DocStateReady {
			return validationErr(def.Name, "input",
				"publish actions consume READY documents", ErrBadState)
		}
	case domain.ActionTypeConsume:
		if def.Input.State != domain.DocStatePublished {
			return validationErr(def.Name, "input",
				"consume actions consume PUBLISHED documents", ErrBadState)
		}
	}

	switch def.Type {
	case domain.ActionTypeCollect, domain.ActionTypeUtility:
		if def.Schedule == "" {
			return validationErr(def.Name, "schedule", "schedule is required", ErrMissingSchedule)
		}
		if _, err := cronParser.Parse(def.Schedule); err != nil {
			return validationErr(def.Name, "schedule",
				fmt.Sprintf("invalid schedule %q: %v", def.Schedule, err), ErrBadSchedule)
		}
	}
	return nil
}

// checkFlow собирает предупреждения о неиспользуемых выходах:
// производимый, но никем не потребляемый docspec — не ошибка.
func (w *Workflow) checkFlow(spec *Spec) []string {
	var warnings []string
	for i := range spec.Actions {
		def := &spec.Actions[i]
		if !def.Active || def.Output.IsZero() {
			continue
		}
		if len(w.byInput[def.Output.String()]) == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"action %q output %s is not consumed by any action",
				def.Name, def.Output))
		}
	}
	return warnings
}

// checkMissingProducers возвращает ошибку, если потребляемый docspec
// никем не производится. Синтетические trigger-docspec исключены.
func (w *Workflow) checkMissingProducers(spec *Spec) error {
	produced := make(map[string]bool)
	for i := range spec.Actions {
		def := &spec.Actions[i]
		if def.Active && !def.Output.IsZero() {
			produced[def.Output.String()] = true
		}
	}
	for i := range spec.Actions {
		def := &spec.Actions[i]
		if !def.Active || def.Input.IsTrigger() {
			continue
		}
		if !produced[def.Input.String()] {
			return validationErr(def.Name, "input",
				fmt.Sprintf("consumed docspec %s has no producer", def.Input), ErrMissingProducer)
		}
	}
	return nil
}

// checkAcyclic проверяет граф docspec→docspec на циклы сортировкой Кана.
// Цикл — фатальная ошибка конфигурации на этапе построения workflow,
// не на этапе обработки документов.
func (w *Workflow) checkAcyclic(spec *Spec) error {
	if err := w.checkMissingProducers(spec); err != nil {
		return err
	}

	// Узлы — docspec, рёбра — input→output каждого активного действия.
	inDegree := make(map[string]int)
	edges := make(map[string][]string)
	addNode := func(key string) {
		if _, ok := inDegree[key]; !ok {
			inDegree[key] = 0
		}
	}

	for i := range spec.Actions {
		def := &spec.Actions[i]
		if !def.Active || def.Output.IsZero() {
			continue
		}
		from, to := def.Input.String(), def.Output.String()
		addNode(from)
		addNode(to)
		edges[from] = append(edges[from], to)
		inDegree[to]++
	}

	queue := make([]string, 0, len(inDegree))
	for node, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range edges[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(inDegree) {
		return ErrCyclicFlow
	}
	return nil
}

// ValidateSchedule проверяет валидность cron-выражения.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadSchedule, expr, err)
	}
	return nil
}

// NextExecution вычисляет следующее время срабатывания расписания
// после заданного момента.
func NextExecution(expr string, after time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadSchedule, expr, err)
	}
	return schedule.Next(after), nil
}
