package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Значения конфигурации по умолчанию.
const (
	defaultLockHold       = time.Hour
	defaultMaxContentSize = 4 * 1024 * 1024
	defaultMaxRawSize     = 100 * 1024 * 1024
)

// Config — конфигурация DocumentStore.
type Config struct {
	// Signature — подпись владельца блокировки (идентификатор процесса-агента).
	Signature string

	// LockHold — административная верхняя граница удержания блокировки.
	// По истечении блокировка считается брошенной и может быть снята
	// ForceResetExpiredLocks. Должна быть щедрой относительно ожидаемого
	// времени выполнения действия: внутри одного выполнения блокировка
	// не продлевается.
	LockHold time.Duration

	// MaxContentSize — потолок размера сериализованного content в байтах.
	MaxContentSize int

	// MaxRawSize — потолок размера raw в байтах.
	MaxRawSize int
}

// DocumentStore — адаптер хранилища документов поверх PostgreSQL.
//
// Документы распределены по партициям (documents, failures,
// published_documents, collection_history); партицию определяет
// disposition документа на момент save. Блокировка на уровне записи —
// единственный примитив взаимного исключения между агентами.
type DocumentStore struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// New создаёт DocumentStore.
func New(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *DocumentStore {
	if cfg.LockHold <= 0 {
		cfg.LockHold = defaultLockHold
	}
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = defaultMaxContentSize
	}
	if cfg.MaxRawSize <= 0 {
		cfg.MaxRawSize = defaultMaxRawSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{pool: pool, cfg: cfg, logger: logger}
}

const selectColumns = `internal_id, document_id, type, state, content, raw, metadata,
	title, copyright, pending_actions, pending_work, collection_task_ids,
	archive_files, dev_errors, ops_errors, version, created_at, updated_at,
	document_timestamp, published_at`

// Create вставляет новый документ в рабочий пул.
// Нарушение уникальности (document_id, type, state) возвращает
// ErrDuplicateDocument.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := s.checkSizes(doc); err != nil {
		return err
	}
	cols, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (internal_id, document_id, type, state, content, raw, metadata,
			title, copyright, pending_actions, pending_work, collection_task_ids,
			archive_files, dev_errors, ops_errors, version, created_at, updated_at,
			document_timestamp, published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, TableDocuments)

	if _, err := s.pool.Exec(ctx, query, cols...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s (%s:%s)", ErrDuplicateDocument,
				doc.DocumentID, doc.Type, doc.State)
		}
		return connErr("create document", err)
	}
	return nil
}

// GetPublished возвращает опубликованный документ по (document_id, type).
func (s *DocumentStore) GetPublished(ctx context.Context, documentID, docType string) (*domain.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE document_id = $1 AND type = $2`,
		selectColumns, TablePublished)
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, documentID, docType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, connErr("get published", err)
	}
	return doc, nil
}

// Save сохраняет in-memory draft в партицию, определяемую disposition
// документа, очищает disposition и — при unlock — снимает блокировку.
//
// Идемпотентно при retry: повторный вызов с тем же содержимым безопасен
// (перемещения выполняются как delete+upsert в одной транзакции).
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document, unlock bool) error {
	if err := s.checkSizes(doc); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now().UTC()
	disposition := doc.Disposition
	if disposition == "" {
		disposition = domain.DispositionPending
	}

	var err error
	switch disposition {
	case domain.DispositionPending:
		err = s.saveInPlace(ctx, doc, unlock)
	case domain.DispositionFailure:
		err = s.moveTo(ctx, doc, TableFailures)
	case domain.DispositionPublished:
		err = s.savePublished(ctx, doc)
	case domain.DispositionHistory:
		err = s.moveTo(ctx, doc, TableCollectionHistory)
	case domain.DispositionDelete:
		err = s.delete(ctx, doc)
	default:
		err = fmt.Errorf("unknown disposition %q", disposition)
	}
	if err != nil {
		return err
	}

	doc.ResetDisposition()
	doc.PublishedID = nil
	return nil
}

// saveInPlace обновляет документ в его текущей партиции.
// Документы в состоянии PUBLISHED живут в published-партиции,
// остальные — в рабочем пуле.
func (s *DocumentStore) saveInPlace(ctx context.Context, doc *domain.Document, unlock bool) error {
	table := TableDocuments
	if doc.State == domain.DocStatePublished {
		table = TablePublished
	}
	cols, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	lockClause := ""
	if unlock {
		lockClause = ", locked_by = NULL, locked_at = NULL, lock_expires_at = NULL"
	}
	query := fmt.Sprintf(`
		UPDATE %s SET document_id = $2, type = $3, state = $4, content = $5, raw = $6,
			metadata = $7, title = $8, copyright = $9, pending_actions = $10,
			pending_work = $11, collection_task_ids = $12, archive_files = $13,
			dev_errors = $14, ops_errors = $15, version = $16, created_at = $17,
			updated_at = $18, document_timestamp = $19, published_at = $20%s
		WHERE internal_id = $1
	`, table, lockClause)

	tag, err := s.pool.Exec(ctx, query, cols...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s (%s:%s)", ErrDuplicateDocument,
				doc.DocumentID, doc.Type, doc.State)
		}
		return connErr("save document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// moveTo переносит документ из рабочего пула в указанную партицию.
// Перенос всегда снимает блокировку — в целевых партициях нет
// pending-работы.
func (s *DocumentStore) moveTo(ctx context.Context, doc *domain.Document, table string) error {
	cols, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	return s.inTx(ctx, "move document", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE internal_id = $1", TableDocuments),
			doc.InternalID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertQuery(table), cols...)
		return err
	})
}

// savePublished переносит документ в published-партицию, замещая
// предыдущую опубликованную копию с тем же (document_id, type).
func (s *DocumentStore) savePublished(ctx context.Context, doc *domain.Document) error {
	cols, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	return s.inTx(ctx, "publish document", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE internal_id = $1", TableDocuments),
			doc.InternalID); err != nil {
			return err
		}
		// Замещаем предыдущую копию; internal_id у неё другой,
		// поэтому upsert по PK его не перекроет.
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE document_id = $1 AND type = $2 AND internal_id <> $3", TablePublished),
			doc.DocumentID, doc.Type, doc.InternalID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertQuery(TablePublished), cols...)
		return err
	})
}

// delete удаляет документ из рабочего пула без следа.
func (s *DocumentStore) delete(ctx context.Context, doc *domain.Document) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE internal_id = $1", TableDocuments),
		doc.InternalID)
	if err != nil {
		return connErr("delete document", err)
	}
	return nil
}

func (s *DocumentStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return connErr(op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w", ErrDuplicateDocument)
		}
		return connErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return connErr(op, err)
	}
	return nil
}

// checkSizes проверяет потолки размеров полезной нагрузки до записи.
func (s *DocumentStore) checkSizes(doc *domain.Document) error {
	if doc.Content != nil {
		b, err := json.Marshal(doc.Content)
		if err != nil {
			return fmt.Errorf("marshal content: %w", err)
		}
		if len(b) > s.cfg.MaxContentSize {
			return &SizeError{Field: "content", Size: len(b), Limit: s.cfg.MaxContentSize}
		}
	}
	if len(doc.Raw) > s.cfg.MaxRawSize {
		return &SizeError{Field: "raw", Size: len(doc.Raw), Limit: s.cfg.MaxRawSize}
	}
	return nil
}

// --- Helpers ---

func upsertQuery(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (internal_id, document_id, type, state, content, raw, metadata,
			title, copyright, pending_actions, pending_work, collection_task_ids,
			archive_files, dev_errors, ops_errors, version, created_at, updated_at,
			document_timestamp, published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (internal_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			type = EXCLUDED.type,
			state = EXCLUDED.state,
			content = EXCLUDED.content,
			raw = EXCLUDED.raw,
			metadata = EXCLUDED.metadata,
			title = EXCLUDED.title,
			copyright = EXCLUDED.copyright,
			pending_actions = EXCLUDED.pending_actions,
			pending_work = EXCLUDED.pending_work,
			collection_task_ids = EXCLUDED.collection_task_ids,
			archive_files = EXCLUDED.archive_files,
			dev_errors = EXCLUDED.dev_errors,
			ops_errors = EXCLUDED.ops_errors,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			document_timestamp = EXCLUDED.document_timestamp,
			published_at = EXCLUDED.published_at
	`, table)
}

// encodeDocument сериализует документ в позиционные аргументы запроса
// в порядке selectColumns.
func encodeDocument(doc *domain.Document) ([]any, error) {
	content, err := marshalNullable(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	metadata, err := marshalNullable(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	pendingActions, err := marshalNullable(doc.PendingActions)
	if err != nil {
		return nil, fmt.Errorf("marshal pending_actions: %w", err)
	}
	taskIDs, err := marshalNullable(doc.CollectionTaskIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal collection_task_ids: %w", err)
	}
	archiveFiles, err := marshalNullable(doc.ArchiveFiles)
	if err != nil {
		return nil, fmt.Errorf("marshal archive_files: %w", err)
	}
	devErrors, err := marshalNullable(doc.DevErrors)
	if err != nil {
		return nil, fmt.Errorf("marshal dev_errors: %w", err)
	}
	opsErrors, err := marshalNullable(doc.OpsErrors)
	if err != nil {
		return nil, fmt.Errorf("marshal ops_errors: %w", err)
	}

	return []any{
		doc.InternalID,
		doc.DocumentID,
		doc.Type,
		string(doc.State),
		content,
		doc.Raw,
		metadata,
		nullString(doc.Title),
		nullString(doc.Copyright),
		pendingActions,
		doc.PendingWork,
		taskIDs,
		archiveFiles,
		devErrors,
		opsErrors,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.DocumentTimestamp,
		doc.PublishedAt,
	}, nil
}

// scanDocument читает документ из строки результата в порядке selectColumns.
func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var state string
	var content, metadata, pendingActions, taskIDs, archiveFiles, devErrors, opsErrors []byte
	var title, copyright *string

	err := row.Scan(
		&doc.InternalID,
		&doc.DocumentID,
		&doc.Type,
		&state,
		&content,
		&doc.Raw,
		&metadata,
		&title,
		&copyright,
		&pendingActions,
		&doc.PendingWork,
		&taskIDs,
		&archiveFiles,
		&devErrors,
		&opsErrors,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.DocumentTimestamp,
		&doc.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.State = domain.DocState(state)
	if title != nil {
		doc.Title = *title
	}
	if copyright != nil {
		doc.Copyright = *copyright
	}
	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{content, &doc.Content},
		{metadata, &doc.Metadata},
		{pendingActions, &doc.PendingActions},
		{taskIDs, &doc.CollectionTaskIDs},
		{archiveFiles, &doc.ArchiveFiles},
		{devErrors, &doc.DevErrors},
		{opsErrors, &doc.OpsErrors},
	} {
		if field.raw == nil {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("unmarshal document field: %w", err)
		}
	}

	doc.Disposition = domain.DispositionPending
	return &doc, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string][]domain.ErrorDetail:
		if len(t) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
