package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentStatusRow — запись heartbeat'а агента или launcher'а.
type AgentStatusRow struct {
	Signature string
	Hostname  string
	Status    string
	Task      string
	Since     time.Time
	UpdatedAt time.Time
}

// AgentStatusRepo — репозиторий heartbeat-статусов агентов.
type AgentStatusRepo struct {
	pool *pgxpool.Pool
}

// NewAgentStatusRepo создаёт AgentStatusRepo.
func NewAgentStatusRepo(pool *pgxpool.Pool) *AgentStatusRepo {
	return &AgentStatusRepo{pool: pool}
}

// Upsert записывает текущий статус агента.
func (r *AgentStatusRepo) Upsert(ctx context.Context, row *AgentStatusRow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agent_status (signature, hostname, status, task, since, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signature) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			status = EXCLUDED.status,
			task = EXCLUDED.task,
			since = EXCLUDED.since,
			updated_at = EXCLUDED.updated_at
	`, row.Signature, row.Hostname, row.Status, nullString(row.Task), row.Since, row.UpdatedAt)
	if err != nil {
		return connErr("upsert agent status", err)
	}
	return nil
}

// List возвращает все известные статусы агентов по подписи.
func (r *AgentStatusRepo) List(ctx context.Context) ([]AgentStatusRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT signature, hostname, status, task, since, updated_at
		FROM agent_status ORDER BY signature ASC
	`)
	if err != nil {
		return nil, connErr("list agent status", err)
	}
	defer rows.Close()

	var out []AgentStatusRow
	for rows.Next() {
		var row AgentStatusRow
		var task *string
		if err := rows.Scan(&row.Signature, &row.Hostname, &row.Status, &task, &row.Since, &row.UpdatedAt); err != nil {
			return nil, connErr("scan agent status", err)
		}
		if task != nil {
			row.Task = *task
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete удаляет статус агента (при штатном завершении).
func (r *AgentStatusRepo) Delete(ctx context.Context, signature string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM agent_status WHERE signature = $1`, signature)
	if err != nil {
		return connErr("delete agent status", err)
	}
	return nil
}
