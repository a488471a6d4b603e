package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// FindOneReadyLocked сканирует партиции в фиксированном порядке приоритета
// и атомарно захватывает самый старый документ с pending_work и без живой
// блокировки. Никогда не ждёт (lock-wait = 0): запись, оспариваемая другим
// агентом, молча пропускается — это не ошибка.
//
// Возвращает (nil, nil), если кандидатов нет ни в одной партиции.
// Сбой соединения в одной партиции пропускает её в текущем проходе,
// не прерывая скан.
func (s *DocumentStore) FindOneReadyLocked(ctx context.Context) (*domain.Document, error) {
	now := time.Now().UTC()
	var lastErr error

	for _, table := range claimPartitions {
		doc, err := s.claimFrom(ctx, table, now)
		if err != nil {
			s.logger.Warn("claim scan failed for partition, skipping",
				"partition", table,
				"error", err,
			)
			lastErr = err
			continue
		}
		if doc != nil {
			return doc, nil
		}
	}

	if lastErr != nil {
		return nil, connErr("claim scan", lastErr)
	}
	return nil, nil
}

// claimFrom пытается захватить один документ из партиции.
// FOR UPDATE SKIP LOCKED разрешает гонку между конкурентными claim'ами
// на уровне строки; предикат по lock_expires_at отсеивает живые
// блокировки других агентов между проходами.
func (s *DocumentStore) claimFrom(ctx context.Context, table string, now time.Time) (*domain.Document, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET locked_by = $1, locked_at = $2, lock_expires_at = $3
		WHERE internal_id = (
			SELECT internal_id FROM %[1]s
			WHERE pending_work
			  AND (locked_by IS NULL OR lock_expires_at < $2)
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %[2]s
	`, table, selectColumns)

	doc, err := scanDocument(s.pool.QueryRow(ctx, query,
		s.cfg.Signature, now, now.Add(s.cfg.LockHold)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// WithLockedDocument находит существующий документ (document_id, type, state)
// в рабочем пуле или создаёт новый draft, удерживает блокировку на время
// выполнения fn и гарантирует save с разблокировкой на каждом пути выхода,
// включая ошибку fn.
//
// Существующий документ под чужой живой блокировкой — ErrDocumentLocked.
func (s *DocumentStore) WithLockedDocument(ctx context.Context, documentID, docType string, state domain.DocState, fn func(doc *domain.Document) error) error {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE %[1]s SET locked_by = $4, locked_at = $5, lock_expires_at = $6
		WHERE internal_id = (
			SELECT internal_id FROM %[1]s
			WHERE document_id = $1 AND type = $2 AND state = $3
			  AND (locked_by IS NULL OR lock_expires_at < $5)
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %[2]s
	`, TableDocuments, selectColumns)

	doc, err := scanDocument(s.pool.QueryRow(ctx, query,
		documentID, docType, string(state),
		s.cfg.Signature, now, now.Add(s.cfg.LockHold)))

	created := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Либо документа нет, либо он под чужой блокировкой.
		exists, existsErr := s.exists(ctx, documentID, docType, state)
		if existsErr != nil {
			return existsErr
		}
		if exists {
			return fmt.Errorf("%w: %s (%s:%s)", ErrDocumentLocked, documentID, docType, state)
		}
		doc = domain.NewDocument(documentID, docType, state)
		created = true
	case err != nil:
		return connErr("lock document", err)
	}

	fnErr := fn(doc)

	var saveErr error
	if created {
		saveErr = s.Create(ctx, doc)
	} else {
		saveErr = s.Save(ctx, doc, true)
	}

	if fnErr != nil {
		return fnErr
	}
	return saveErr
}

func (s *DocumentStore) exists(ctx context.Context, documentID, docType string, state domain.DocState) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE document_id = $1 AND type = $2 AND state = $3)
	`, TableDocuments), documentID, docType, string(state)).Scan(&exists)
	if err != nil {
		return false, connErr("document exists", err)
	}
	return exists, nil
}

// ReleaseLock снимает блокировку без сохранения содержимого.
// Используется на abort-пути, когда документ возвращается в pending-пул
// нетронутым.
func (s *DocumentStore) ReleaseLock(ctx context.Context, doc *domain.Document) error {
	table := TableDocuments
	if doc.State == domain.DocStatePublished {
		table = TablePublished
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET locked_by = NULL, locked_at = NULL, lock_expires_at = NULL
		WHERE internal_id = $1 AND locked_by = $2
	`, table), doc.InternalID, s.cfg.Signature)
	if err != nil {
		return connErr("release lock", err)
	}
	return nil
}

// ForceResetExpiredLocks снимает блокировки с истёкшим сроком удержания,
// возвращая документы в пул незаблокированной pending-работы. Обязательный
// механизм crash recovery: агент, умерший с блокировкой, не должен
// навсегда застолбить документ.
//
// Идемпотентно и безопасно при конкурентном выполнении с обычным claim'ом.
func (s *DocumentStore) ForceResetExpiredLocks(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var total int64

	for _, table := range claimPartitions {
		tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET locked_by = NULL, locked_at = NULL, lock_expires_at = NULL
			WHERE locked_by IS NOT NULL AND lock_expires_at < $1
		`, table), now)
		if err != nil {
			return total, connErr("reset expired locks", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			s.logger.Warn("reclaimed expired locks",
				"partition", table,
				"count", n,
			)
			total += n
		}
	}
	return total, nil
}
