package status

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/store"
)

type fakeRepo struct {
	mu      sync.Mutex
	rows    []*store.AgentStatusRow
	deleted []string
}

func (r *fakeRepo) Upsert(ctx context.Context, row *store.AgentStatusRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, signature)
	return nil
}

func (r *fakeRepo) last() *store.AgentStatusRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 {
		return nil
	}
	return r.rows[len(r.rows)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReporter_SetTracksStatusChange(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReporter(repo, "agent-1", time.Second, testLogger())

	r.Set("RUNNING", "split_news")
	r.flush(context.Background())

	row := repo.last()
	if row == nil {
		t.Fatal("expected a heartbeat row")
	}
	if row.Signature != "agent-1" || row.Status != "RUNNING" || row.Task != "split_news" {
		t.Errorf("unexpected row %+v", row)
	}

	// Смена задачи без смены статуса не двигает since
	since := row.Since
	r.Set("RUNNING", "publish_news")
	r.flush(context.Background())
	if !repo.last().Since.Equal(since) {
		t.Error("since must not move without a status change")
	}

	// Смена статуса двигает
	r.Set("IDLE", "")
	r.flush(context.Background())
	if repo.last().Since.Equal(since) {
		t.Error("since must move on status change")
	}
}

func TestReporter_DeletesOnShutdown(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReporter(repo, "agent-1", 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reporter did not stop")
	}

	if len(repo.deleted) != 1 || repo.deleted[0] != "agent-1" {
		t.Errorf("expected status deletion on shutdown, got %v", repo.deleted)
	}
	if len(repo.rows) == 0 {
		t.Error("expected at least one heartbeat before shutdown")
	}
}
