package domain

// ActionDef — определение действия внутри workflow-конфигурации.
//
// Impl — символический ключ реализации, разрешаемый через явную карту
// регистрации фабрик (никакого разрешения классов по имени во время
// выполнения).
type ActionDef struct {
	// Name — уникальное имя действия внутри workflow.
	Name string `json:"name" yaml:"name"`

	// Type — один из шести типов действий.
	Type ActionType `json:"type" yaml:"type"`

	// Impl — ключ фабрики реализации.
	Impl string `json:"impl" yaml:"impl"`

	// Input — потребляемый docspec. Для collect-действий заполняется
	// автоматически trigger-типом, если не задан.
	Input DocSpec `json:"input" yaml:"input"`

	// Output — производимый docspec. Пуст для consume/utility.
	Output DocSpec `json:"output,omitempty" yaml:"output,omitempty"`

	// Schedule — cron-выражение для collect- и utility-действий.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	// Config — конфигурация, передаваемая фабрике реализации.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Active — деактивированные действия не участвуют в резолве
	// и не триггерятся по расписанию.
	Active bool `json:"active" yaml:"active"`
}
