package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/armagh-dev/armag-sub002/internal/actions"
	"github.com/armagh-dev/armag-sub002/internal/alert"
	"github.com/armagh-dev/armag-sub002/internal/backoff"
	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
)

// State — состояние цикла агента.
//
// Диаграмма переходов:
//
//	IDLE --claim succeeds--> CLAIMED
//	CLAIMED --pending empty OR error--> DONE --release lock--> IDLE
//	CLAIMED --pop next action--> EXECUTING
//	EXECUTING --success--> CLAIMED
//	EXECUTING --recorded error--> CLAIMED
//	EXECUTING --abort--> DONE
//	IDLE --claim fails--> IDLE (backoff)
type State string

const (
	StateIdle      State = "IDLE"
	StateClaimed   State = "CLAIMED"
	StateExecuting State = "EXECUTING"
	StateDone      State = "DONE"
)

// DocStore — контракт хранилища документов, нужный агенту.
// Реализуется store.DocumentStore; в тестах — in-memory fake.
type DocStore interface {
	// FindOneReadyLocked атомарно захватывает документ с pending-работой.
	// (nil, nil) — кандидатов нет.
	FindOneReadyLocked(ctx context.Context) (*domain.Document, error)

	// Save сохраняет документ в партицию по его disposition.
	Save(ctx context.Context, doc *domain.Document, unlock bool) error

	// Create вставляет новый документ в рабочий пул.
	Create(ctx context.Context, doc *domain.Document) error

	// GetPublished возвращает опубликованную копию или store.ErrNotFound.
	GetPublished(ctx context.Context, documentID, docType string) (*domain.Document, error)

	// ReleaseLock снимает блокировку без сохранения (abort-путь).
	ReleaseLock(ctx context.Context, doc *domain.Document) error
}

// Resolver — контракт резолвера workflow, нужный агенту.
// Реализуется workflow.Resolver.
type Resolver interface {
	Refresh(ctx context.Context, force bool) (bool, error)
	ActionsForDocSpec(spec domain.DocSpec) []string
	Instantiate(name string) (actions.Action, *domain.ActionDef, error)
}

// StatusSetter — приёмник смены статуса агента (heartbeat).
type StatusSetter interface {
	Set(status, task string)
}

// Config — конфигурация Agent.
type Config struct {
	Store    DocStore
	Resolver Resolver

	// Alerts — приёмник операторских алертов (опционально; по умолчанию
	// LogSink).
	Alerts alert.Sink

	// Signature — подпись агента (владелец блокировок, heartbeat).
	Signature string

	// WorkRoot — корень scratch-каталогов действий (default: os.TempDir).
	WorkRoot string

	// Backoff — пейсинг простоя и ошибок (опционально).
	Backoff *backoff.Backoff

	// Status — heartbeat-приёмник (опционально).
	Status StatusSetter

	Logger *slog.Logger
}

// Agent — цикл обработки документов: захватывает документ под
// эксклюзивную блокировку, проходит его список pending-действий через
// обработчики типов действий и сохраняет результат.
//
// Агенты не разделяют in-process состояние: единственный общий
// мутабельный ресурс — хранилище документов.
type Agent struct {
	store    DocStore
	resolver Resolver
	alerts   alert.Sink
	backoff  *backoff.Backoff
	status   StatusSetter

	signature string
	workRoot  string
	logger    *slog.Logger

	state State
}

// New создаёт Agent.
func New(cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signature := cfg.Signature
	if signature == "" {
		signature = "agent-" + uuid.NewString()
	}
	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	bo := cfg.Backoff
	if bo == nil {
		bo = backoff.New()
	}
	alerts := cfg.Alerts
	if alerts == nil {
		alerts = &alert.LogSink{Logger: logger}
	}
	return &Agent{
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		alerts:    alerts,
		backoff:   bo,
		status:    cfg.Status,
		signature: signature,
		workRoot:  workRoot,
		logger:    logger.With("agent", signature),
	}
}

// Signature возвращает подпись агента.
func (a *Agent) Signature() string { return a.signature }

// Run — внешний цикл агента. Блокируется до отмены контекста.
//
// Shutdown кооперативный: сигнал наблюдается в начале каждой итерации
// и внутри backoff-пауз; выполняющееся действие не прерывается —
// агент завершает текущий документ и выходит.
//
// Любая паника, вырвавшаяся из обработки, логируется как фатальная
// dev-ошибка и завершает цикл этого агента; восстановление — внешний
// supervisory restart.
func (a *Agent) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent loop panic: %v", r)
			a.logger.Error("fatal agent error", "panic", r)
			a.notifyDev(ctx, "", "", fmt.Sprintf("agent loop panic: %v", r))
		}
	}()

	a.logger.Info("agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopped")
			return nil
		default:
		}

		// Снимок workflow обновляется по таймстемпу; невалидная
		// конфигурация оставляет активным прежний снимок.
		if _, err := a.resolver.Refresh(ctx, false); err != nil {
			a.logger.Warn("workflow refresh failed", "error", err)
		}

		doc, err := a.store.FindOneReadyLocked(ctx)
		if err != nil {
			a.logger.Warn("claim scan failed", "error", err)
			if werr := a.idle(ctx); werr != nil {
				return nil
			}
			continue
		}

		if doc == nil {
			if werr := a.idle(ctx); werr != nil {
				return nil
			}
			continue
		}

		a.backoff.Reset()
		telemetry.DocumentsClaimed.Inc()
		a.processDocument(ctx, doc)
	}
}

// idle переводит агента в IDLE и ждёт backoff-паузу.
// Возвращает ошибку контекста при shutdown.
func (a *Agent) idle(ctx context.Context) error {
	if a.state != StateIdle {
		a.setState(StateIdle, "")
	}
	err := a.backoff.Wait(ctx)
	return err
}

// setState фиксирует смену состояния и репортит heartbeat.
// Gauge AgentsIdle меняется только на переходах через границу IDLE,
// поэтому Inc и Dec всегда парные. До первого перехода агент не
// учитывается как простаивающий.
func (a *Agent) setState(state State, task string) {
	if a.state != StateIdle && state == StateIdle {
		telemetry.AgentsIdle.Inc()
	}
	if a.state == StateIdle && state != StateIdle {
		telemetry.AgentsIdle.Dec()
	}
	a.state = state
	if a.status != nil {
		status := "RUNNING"
		if state == StateIdle {
			status = "IDLE"
		}
		a.status.Set(status, task)
	}
}

// notifyOps отправляет операционный алерт.
func (a *Agent) notifyOps(ctx context.Context, actionName, internalID, message string) {
	_ = a.alerts.Notify(ctx, alert.Alert{
		Severity:           alert.SeverityOps,
		Component:          "agent",
		Action:             actionName,
		DocumentInternalID: internalID,
		Message:            message,
	})
}

// notifyDev отправляет dev-алерт (эскалация выше ops: сигнал бага).
func (a *Agent) notifyDev(ctx context.Context, actionName, internalID, message string) {
	_ = a.alerts.Notify(ctx, alert.Alert{
		Severity:           alert.SeverityDev,
		Component:          "agent",
		Action:             actionName,
		DocumentInternalID: internalID,
		Message:            message,
	})
}
