package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoredWorkflow — запись workflow-конфигурации в хранилище.
type StoredWorkflow struct {
	// Name — имя workflow.
	Name string

	// Spec — сериализованное определение (JSON).
	Spec []byte

	// Generation — монотонно растущее поколение конфигурации.
	// Используется триггером для сброса cadence-состояния при изменении.
	Generation int64

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time
}

// WorkflowConfigRepo — репозиторий workflow-конфигураций.
type WorkflowConfigRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowConfigRepo создаёт WorkflowConfigRepo.
func NewWorkflowConfigRepo(pool *pgxpool.Pool) *WorkflowConfigRepo {
	return &WorkflowConfigRepo{pool: pool}
}

// Load возвращает workflow-конфигурацию по имени.
func (r *WorkflowConfigRepo) Load(ctx context.Context, name string) (*StoredWorkflow, error) {
	var wf StoredWorkflow
	err := r.pool.QueryRow(ctx, `
		SELECT name, spec, generation, updated_at FROM workflow_configs WHERE name = $1
	`, name).Scan(&wf.Name, &wf.Spec, &wf.Generation, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, connErr("load workflow config", err)
	}
	return &wf, nil
}

// Replace сохраняет определение workflow, инкрементируя generation.
// Семантика "replace if newer": запись обновляется безусловно, поколение
// растёт монотонно.
func (r *WorkflowConfigRepo) Replace(ctx context.Context, name string, spec any) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal workflow spec: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO workflow_configs (name, spec, generation, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (name) DO UPDATE SET
			spec = EXCLUDED.spec,
			generation = workflow_configs.generation + 1,
			updated_at = EXCLUDED.updated_at
	`, name, raw, time.Now().UTC())
	if err != nil {
		return connErr("replace workflow config", err)
	}
	return nil
}
