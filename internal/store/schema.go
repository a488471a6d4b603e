package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Партиции документов. Порядок в claimPartitions — приоритет сканирования
// при поиске работы: сначала рабочий пул, затем опубликованные документы
// с consume-действиями. failures и collection_history не сканируются —
// там pending_work всегда false.
const (
	TableDocuments         = "documents"
	TableFailures          = "failures"
	TablePublished         = "published_documents"
	TableCollectionHistory = "collection_history"
)

var claimPartitions = []string{TableDocuments, TablePublished}

// documentColumns — общий набор колонок всех партиций документов.
const documentColumns = `
	internal_id UUID PRIMARY KEY,
	document_id TEXT NOT NULL,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	content JSONB,
	raw BYTEA,
	metadata JSONB,
	title TEXT,
	copyright TEXT,
	pending_actions JSONB,
	pending_work BOOLEAN NOT NULL DEFAULT FALSE,
	collection_task_ids JSONB,
	archive_files JSONB,
	dev_errors JSONB,
	ops_errors JSONB,
	version INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	document_timestamp TIMESTAMPTZ,
	published_at TIMESTAMPTZ,
	locked_by TEXT,
	locked_at TIMESTAMPTZ,
	lock_expires_at TIMESTAMPTZ
`

// EnsureSchema создаёт таблицы, если их ещё нет.
// Идемпотентно; вызывается при старте каждого процесса.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", TableDocuments, documentColumns),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", TableFailures, documentColumns),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", TablePublished, documentColumns),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", TableCollectionHistory, documentColumns),

		// Уникальность (document_id, type, state) в рабочем пуле.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS documents_identity_idx
			ON %s (document_id, type, state)`, TableDocuments),

		// В published-партиции документ уникален по (document_id, type);
		// publish замещает предыдущую копию.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS published_identity_idx
			ON %s (document_id, type)`, TablePublished),

		// Индексы под claim-скан: pending_work + порядок создания.
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_claim_idx
			ON %s (created_at) WHERE pending_work`, TableDocuments),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS published_claim_idx
			ON %s (created_at) WHERE pending_work`, TablePublished),

		`CREATE TABLE IF NOT EXISTS workflow_configs (
			name TEXT PRIMARY KEY,
			spec JSONB NOT NULL,
			generation BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS agent_status (
			signature TEXT PRIMARY KEY,
			hostname TEXT NOT NULL,
			status TEXT NOT NULL,
			task TEXT,
			since TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return connErr("ensure schema", err)
		}
	}
	return nil
}
