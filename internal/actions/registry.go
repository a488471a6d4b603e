package actions

import (
	"fmt"
	"sort"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Factory создаёт экземпляр действия из его определения.
// Зависимости (логгер, хранилище, архиватор) захватываются замыканием
// при регистрации в точке входа процесса.
type Factory func(def domain.ActionDef) (Action, error)

// Registry — явная карта регистрации фабрик действий по ключу реализации.
//
// Заполняется один раз при старте процесса и далее не мутируется;
// никакого ambient-поиска классов и разрешения по имени во время
// выполнения нет.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register добавляет фабрику для ключа реализации.
// Повторная регистрация ключа — ошибка программирования, паника.
func (r *Registry) Register(impl string, factory Factory) {
	if _, dup := r.factories[impl]; dup {
		panic(fmt.Sprintf("actions: duplicate registration for impl %q", impl))
	}
	r.factories[impl] = factory
}

// New создаёт экземпляр действия по его определению.
func (r *Registry) New(def domain.ActionDef) (Action, error) {
	factory, ok := r.factories[def.Impl]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImpl, def.Impl)
	}
	action, err := factory(def)
	if err != nil {
		return nil, fmt.Errorf("instantiate action %q: %w", def.Name, err)
	}
	return action, nil
}

// Known возвращает true, если ключ реализации зарегистрирован.
func (r *Registry) Known(impl string) bool {
	_, ok := r.factories[impl]
	return ok
}

// Impls возвращает отсортированный список зарегистрированных ключей.
func (r *Registry) Impls() []string {
	out := make([]string, 0, len(r.factories))
	for impl := range r.factories {
		out = append(out, impl)
	}
	sort.Strings(out)
	return out
}
