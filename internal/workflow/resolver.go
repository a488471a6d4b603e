package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/actions"
	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Stored — workflow-конфигурация, прочитанная из хранилища.
type Stored struct {
	Spec       []byte
	Generation int64
	UpdatedAt  time.Time
}

// Source — источник workflow-конфигурации (хранилище конфигураций).
type Source interface {
	Load(ctx context.Context) (*Stored, error)
}

// Resolver — резолвер workflow: отображает docspec документа на
// упорядоченный набор действий и выдаёт экземпляры действий по запросу.
//
// Держит текущий скомпилированный снимок и обновляет его по Refresh,
// когда поколение конфигурации в хранилище продвинулось. Невалидная
// конфигурация оставляет активным предыдущий валидный снимок.
type Resolver struct {
	source   Source
	registry *actions.Registry
	logger   *slog.Logger

	mu      sync.RWMutex
	current *Workflow
}

// NewResolver создаёт Resolver. Снимок пуст до первого Refresh.
func NewResolver(source Source, registry *actions.Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, registry: registry, logger: logger}
}

// Current возвращает текущий снимок workflow (nil до первого Refresh).
func (r *Resolver) Current() *Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh перезагружает определение workflow из хранилища, если его
// поколение продвинулось (или force). Возвращает true, если снимок
// был заменён.
//
// Ошибка компиляции фатальна для Refresh, но не для процесса: прежний
// валидный снимок остаётся активным до исправления конфигурации.
func (r *Resolver) Refresh(ctx context.Context, force bool) (bool, error) {
	stored, err := r.source.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load workflow config: %w", err)
	}

	r.mu.RLock()
	current := r.current
	r.mu.RUnlock()

	if !force && current != nil && current.Generation == stored.Generation {
		return false, nil
	}

	var spec Spec
	if err := json.Unmarshal(stored.Spec, &spec); err != nil {
		return false, fmt.Errorf("decode workflow spec: %w", err)
	}

	compiled, warnings, err := Compile(&spec, stored.Generation)
	if err != nil {
		r.logger.Error("workflow validation failed, keeping previous snapshot",
			"workflow", spec.Name,
			"generation", stored.Generation,
			"error", err,
		)
		return false, fmt.Errorf("compile workflow %q: %w", spec.Name, err)
	}
	for _, warning := range warnings {
		r.logger.Warn("workflow validation warning",
			"workflow", spec.Name,
			"warning", warning,
		)
	}

	r.mu.Lock()
	r.current = compiled
	r.mu.Unlock()

	r.logger.Info("workflow snapshot loaded",
		"workflow", compiled.Name,
		"generation", compiled.Generation,
		"actions", len(compiled.actions),
	)
	return true, nil
}

// ActionsForDocSpec возвращает упорядоченные имена действий для docspec.
// Пустой список (терминальный docspec) логируется на debug.
func (r *Resolver) ActionsForDocSpec(spec domain.DocSpec) []string {
	wf := r.Current()
	if wf == nil {
		return nil
	}
	names := wf.ActionsForDocSpec(spec)
	if len(names) == 0 {
		r.logger.Debug("no actions consume docspec", "docspec", spec.String())
	}
	return names
}

// Instantiate разрешает имя действия в экземпляр с его определением.
//
// Действие, удалённое или деактивированное между планированием и
// выполнением — ErrActionNotFound: нормальная гонка при конкурентной
// переконфигурации.
func (r *Resolver) Instantiate(name string) (actions.Action, *domain.ActionDef, error) {
	wf := r.Current()
	if wf == nil {
		return nil, nil, fmt.Errorf("%w: %q (no workflow loaded)", ErrActionNotFound, name)
	}
	def, ok := wf.Get(name)
	if !ok || !def.Active {
		return nil, nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	action, err := r.registry.New(*def)
	if err != nil {
		return nil, nil, err
	}
	return action, def, nil
}

// DividerForDocSpec возвращает экземпляр divide-действия для docspec,
// если оно зарегистрировано. Первое совпадение побеждает.
func (r *Resolver) DividerForDocSpec(spec domain.DocSpec) (actions.Action, *domain.ActionDef, error) {
	wf := r.Current()
	if wf == nil {
		return nil, nil, nil
	}
	def, ok := wf.DividerForDocSpec(spec)
	if !ok {
		return nil, nil, nil
	}
	action, err := r.registry.New(*def)
	if err != nil {
		return nil, nil, err
	}
	return action, def, nil
}
