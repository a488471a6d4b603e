package trigger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
	"github.com/armagh-dev/armag-sub002/internal/workflow"
)

// DocCreator — контракт вставки trigger-документов в рабочий пул.
type DocCreator interface {
	Create(ctx context.Context, doc *domain.Document) error
}

// Workflows — контракт резолвера workflow, нужный trigger'у.
type Workflows interface {
	Refresh(ctx context.Context, force bool) (bool, error)
	Current() *workflow.Workflow
}

// Sweeper — контракт сброса протухших блокировок.
type Sweeper interface {
	ForceResetExpiredLocks(ctx context.Context) (int64, error)
}

// Config — конфигурация Trigger.
type Config struct {
	Store    DocCreator
	Resolver Workflows

	// Sweeper — опциональный фоновый сброс протухших блокировок.
	Sweeper Sweeper

	// Interval — период опроса расписаний (default 1s).
	Interval time.Duration

	// SweepInterval — период сброса блокировок (default 1m).
	SweepInterval time.Duration

	Logger *slog.Logger
}

// Trigger — планировщик collect- и utility-действий.
//
// Раз в Interval сверяет cron-расписания активных действий текущего
// снимка workflow и вставляет trigger-документы для тех, чьё время
// пришло. Никогда не выполняет действия сам: выполнение — работа
// агентов, конкурирующих за trigger-документы наравне с остальными.
type Trigger struct {
	store    DocCreator
	resolver Workflows
	sweeper  Sweeper
	logger   *slog.Logger

	interval      time.Duration
	sweepInterval time.Duration

	// lastRun — время последней сверки по имени действия. Сбрасывается
	// целиком при смене поколения снимка: новое расписание отсчитывает
	// от момента загрузки, не от истории прежнего.
	lastRun    map[string]time.Time
	generation int64

	// now подменяется в тестах.
	now func() time.Time
}

// New создаёт Trigger.
func New(cfg Config) *Trigger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Trigger{
		store:         cfg.Store,
		resolver:      cfg.Resolver,
		sweeper:       cfg.Sweeper,
		logger:        logger,
		interval:      interval,
		sweepInterval: sweepInterval,
		lastRun:       make(map[string]time.Time),
		generation:    -1,
		now:           time.Now,
	}
}

// Run — цикл планировщика. Блокируется до отмены контекста.
func (t *Trigger) Run(ctx context.Context) error {
	t.logger.Info("collection trigger started", "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var sweepTicker *time.Ticker
	sweepCh := make(<-chan time.Time)
	if t.sweeper != nil {
		sweepTicker = time.NewTicker(t.sweepInterval)
		defer sweepTicker.Stop()
		sweepCh = sweepTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("collection trigger stopped")
			return nil
		case <-ticker.C:
			t.tick(ctx)
		case <-sweepCh:
			t.sweep(ctx)
		}
	}
}

// tick сверяет расписания против текущего момента.
func (t *Trigger) tick(ctx context.Context) {
	if _, err := t.resolver.Refresh(ctx, false); err != nil {
		t.logger.Warn("workflow refresh failed", "error", err)
	}

	snapshot := t.resolver.Current()
	if snapshot == nil {
		return
	}

	if snapshot.Generation != t.generation {
		// Новый снимок: вся история расписаний обнуляется.
		t.lastRun = make(map[string]time.Time)
		t.generation = snapshot.Generation
		t.logger.Info("workflow snapshot changed, schedules reset",
			"workflow", snapshot.Name,
			"generation", snapshot.Generation,
		)
	}

	now := t.now().UTC()
	seen := make(map[string]bool)

	for _, def := range snapshot.ScheduledDefs() {
		seen[def.Name] = true

		last, ok := t.lastRun[def.Name]
		if !ok {
			// Первая сверка: отсчёт начинается сейчас, без
			// немедленного срабатывания.
			t.lastRun[def.Name] = now
			continue
		}

		next, err := workflow.NextExecution(def.Schedule, last)
		if err != nil {
			// Снимок валидировал расписания при компиляции.
			t.logger.Error("unparseable schedule in compiled snapshot",
				"action", def.Name, "schedule", def.Schedule, "error", err)
			continue
		}
		if now.Before(next) {
			continue
		}

		t.fire(ctx, def)
		t.lastRun[def.Name] = now
	}

	// Действия, ушедшие из снимка, не должны держать историю.
	for name := range t.lastRun {
		if !seen[name] {
			delete(t.lastRun, name)
		}
	}
}

// fire вставляет trigger-документ действия в рабочий пул.
func (t *Trigger) fire(ctx context.Context, def *domain.ActionDef) {
	doc := domain.NewTriggerDocument(def.Name)
	if err := t.store.Create(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDuplicateDocument) {
			// Прежний trigger ещё не обработан агентами.
			t.logger.Debug("trigger document already pending", "action", def.Name)
			return
		}
		t.logger.Warn("failed to seed trigger document", "action", def.Name, "error", err)
		return
	}
	telemetry.TriggerDocumentsSeeded.Inc()
	t.logger.Info("trigger document seeded", "action", def.Name, "schedule", def.Schedule)
}

// sweep возвращает в пул документы с протухшими блокировками.
func (t *Trigger) sweep(ctx context.Context) {
	reclaimed, err := t.sweeper.ForceResetExpiredLocks(ctx)
	if err != nil {
		t.logger.Warn("expired lock sweep failed", "error", err)
		return
	}
	if reclaimed > 0 {
		telemetry.ExpiredLocksReclaimed.Add(float64(reclaimed))
	}
}
