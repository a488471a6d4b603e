package status

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/store"
)

// StatusRepo — контракт хранилища heartbeat-статусов.
type StatusRepo interface {
	Upsert(ctx context.Context, row *store.AgentStatusRow) error
	Delete(ctx context.Context, signature string) error
}

// Reporter — heartbeat-репортёр одного агента.
//
// Агент отдаёт смены статуса через Set (неблокирующе, под мьютексом);
// Run периодически сбрасывает последний снимок в хранилище. Статус
// агента, переставшего обновляться, другие компоненты трактуют как
// STALE по возрасту updated_at.
type Reporter struct {
	repo      StatusRepo
	signature string
	hostname  string
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	status string
	task   string
	since  time.Time
}

// NewReporter создаёт Reporter для агента с данной подписью.
// interval <= 0 означает default 10s.
func NewReporter(repo StatusRepo, signature string, interval time.Duration, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Reporter{
		repo:      repo,
		signature: signature,
		hostname:  hostname,
		interval:  interval,
		logger:    logger,
		status:    "IDLE",
		since:     time.Now().UTC(),
	}
}

// Set фиксирует смену статуса агента. Запись в хранилище отложена
// до ближайшего heartbeat-тика.
func (r *Reporter) Set(status, task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status != r.status {
		r.since = time.Now().UTC()
	}
	r.status = status
	r.task = task
}

// Run — heartbeat-цикл. Блокируется до отмены контекста; при выходе
// удаляет запись агента (штатное завершение не оставляет следа).
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.flush(ctx)

	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.repo.Delete(cleanupCtx, r.signature); err != nil {
				r.logger.Warn("failed to delete agent status on shutdown", "error", err)
			}
			return nil
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// flush пишет снимок статуса в хранилище. Периодическая запись идёт
// даже без смены статуса: свежий updated_at и есть heartbeat.
func (r *Reporter) flush(ctx context.Context) {
	r.mu.Lock()
	row := &store.AgentStatusRow{
		Signature: r.signature,
		Hostname:  r.hostname,
		Status:    r.status,
		Task:      r.task,
		Since:     r.since,
		UpdatedAt: time.Now().UTC(),
	}
	r.mu.Unlock()

	if err := r.repo.Upsert(ctx, row); err != nil {
		r.logger.Warn("heartbeat write failed", "error", err)
	}
}
