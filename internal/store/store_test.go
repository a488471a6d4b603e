package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Интеграционные тесты протокола блокировок: нужен живой PostgreSQL.
// DSN берётся из TEST_DB_URL (или DB_URL); без него тесты пропускаются.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		dsn = os.Getenv("DB_URL")
	}
	if dsn == "" {
		t.Skip("TEST_DB_URL is not set, skipping store integration tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, table := range []string{TableDocuments, TableFailures, TablePublished, TableCollectionHistory} {
		if _, err := pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return pool
}

func testStore(t *testing.T, pool *pgxpool.Pool, signature string, hold time.Duration) *DocumentStore {
	t.Helper()
	return New(pool, Config{Signature: signature, LockHold: hold}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// seedReady кладёт в рабочий пул документ с pending-работой.
func seedReady(t *testing.T, s *DocumentStore, documentID string) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(documentID, "news", domain.DocStateReady)
	doc.SetPendingActions([]string{"split_news"})
	if err := s.Create(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc
}

// Конкурентный захват одного документа двумя агентами:
// ровно один выигрывает, второй уходит пустым без ошибки.
func TestFindOneReadyLocked_SingleWinner(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	a := testStore(t, pool, "agent-a", time.Hour)
	b := testStore(t, pool, "agent-b", time.Hour)
	seedReady(t, a, "d1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		errs []error
	)
	for _, s := range []*DocumentStore{a, b} {
		wg.Add(1)
		go func(s *DocumentStore) {
			defer wg.Done()
			doc, err := s.FindOneReadyLocked(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if doc != nil {
				won++
			}
		}(s)
	}
	wg.Wait()

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}

// Живая блокировка другого агента невидима для claim'а.
func TestFindOneReadyLocked_SkipsLiveLock(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	a := testStore(t, pool, "agent-a", time.Hour)
	b := testStore(t, pool, "agent-b", time.Hour)
	seedReady(t, a, "d1")

	doc, err := a.FindOneReadyLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil {
		t.Fatal("expected a claimed document, got nil")
	}

	other, err := b.FindOneReadyLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != nil {
		t.Errorf("expected no candidates under live lock, got %s", other.DocumentID)
	}
}

// Crash recovery: просроченная блокировка снимается sweep'ом,
// документ снова доступен для захвата.
func TestForceResetExpiredLocks_ReclaimsAbandoned(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	dead := testStore(t, pool, "agent-dead", 10*time.Millisecond)
	alive := testStore(t, pool, "agent-alive", time.Hour)
	seed := seedReady(t, dead, "d1")

	doc, err := dead.FindOneReadyLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil {
		t.Fatal("expected a claimed document, got nil")
	}

	time.Sleep(50 * time.Millisecond)

	reclaimed, err := alive.ForceResetExpiredLocks(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reclaimed != 1 {
		t.Errorf("expected 1 reclaimed lock, got %d", reclaimed)
	}

	var unlocked bool
	err = pool.QueryRow(ctx,
		"SELECT locked_by IS NULL FROM documents WHERE internal_id = $1",
		seed.InternalID).Scan(&unlocked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unlocked {
		t.Error("expected lock columns cleared after sweep")
	}

	doc, err = alive.FindOneReadyLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil {
		t.Fatal("expected the document to be claimable after sweep")
	}
}

// Ошибка fn не отменяет контракт: документ сохранён и разблокирован
// на выходе, ошибка fn возвращается вызывающему.
func TestWithLockedDocument_SavesAndUnlocksOnFnError(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	a := testStore(t, pool, "agent-a", time.Hour)
	b := testStore(t, pool, "agent-b", time.Hour)
	seedReady(t, a, "d1")

	errBoom := errors.New("boom")
	err := a.WithLockedDocument(ctx, "d1", "news", domain.DocStateReady, func(doc *domain.Document) error {
		doc.Title = "partial work"
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	// Другой агент берёт документ сразу — блокировка снята,
	// мутация до ошибки сохранена.
	err = b.WithLockedDocument(ctx, "d1", "news", domain.DocStateReady, func(doc *domain.Document) error {
		if doc.Title != "partial work" {
			t.Errorf("expected saved title %q, got %q", "partial work", doc.Title)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Существующий документ под чужой живой блокировкой — ErrDocumentLocked.
func TestWithLockedDocument_LockedByOther(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	a := testStore(t, pool, "agent-a", time.Hour)
	b := testStore(t, pool, "agent-b", time.Hour)
	seedReady(t, a, "d1")

	if doc, err := a.FindOneReadyLocked(ctx); err != nil || doc == nil {
		t.Fatalf("expected a claimed document, got %v, %v", doc, err)
	}

	err := b.WithLockedDocument(ctx, "d1", "news", domain.DocStateReady, func(doc *domain.Document) error {
		t.Error("fn must not run for a locked document")
		return nil
	})
	if !errors.Is(err, ErrDocumentLocked) {
		t.Errorf("expected ErrDocumentLocked, got %v", err)
	}
}

// Отсутствующий документ создаётся как draft и попадает в рабочий пул.
func TestWithLockedDocument_CreatesDraft(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	a := testStore(t, pool, "agent-a", time.Hour)

	err := a.WithLockedDocument(ctx, "fresh", "news", domain.DocStateWorking, func(doc *domain.Document) error {
		doc.SetPendingActions([]string{"split_news"})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := a.FindOneReadyLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.DocumentID != "fresh" {
		t.Fatalf("expected the created draft to be claimable, got %v", doc)
	}
}
