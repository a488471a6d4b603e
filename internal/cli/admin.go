package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
	"github.com/armagh-dev/armag-sub002/internal/workflow"
)

// AdminFn — ленивое создание Admin после парсинга PersistentFlags.
type AdminFn func(ctx context.Context) (*Admin, error)

// OutputFn — ленивое создание Output после парсинга PersistentFlags.
type OutputFn func() *Output

// Admin — административный клиент: работает напрямую с хранилищем,
// HTTP-поверхности у системы нет.
type Admin struct {
	pool       *pgxpool.Pool
	cfgRepo    *store.WorkflowConfigRepo
	statusRepo *store.AgentStatusRepo
	docStore   *store.DocumentStore
}

// Connect открывает пул соединений и готовит схему.
func Connect(ctx context.Context) (*Admin, error) {
	pool, err := store.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger := telemetry.SetupLogger()
	return &Admin{
		pool:       pool,
		cfgRepo:    store.NewWorkflowConfigRepo(pool),
		statusRepo: store.NewAgentStatusRepo(pool),
		docStore:   store.New(pool, store.Config{Signature: "admin"}, logger),
	}, nil
}

// Close закрывает пул соединений.
func (a *Admin) Close() {
	a.pool.Close()
}

// LoadSpecFile читает и валидирует определение workflow из YAML-файла.
// Возвращает разобранное определение и предупреждения валидации.
func LoadSpecFile(path string) (*workflow.Spec, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read workflow file: %w", err)
	}
	var spec workflow.Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, nil, fmt.Errorf("decode workflow file: %w", err)
	}
	_, warnings, err := workflow.Compile(&spec, 0)
	if err != nil {
		return nil, nil, err
	}
	return &spec, warnings, nil
}

// ApplyWorkflow валидирует и сохраняет определение workflow из файла.
// Невалидное определение отклоняется до записи: агенты никогда не
// видят его.
func (a *Admin) ApplyWorkflow(ctx context.Context, path string) (*workflow.Spec, []string, error) {
	spec, warnings, err := LoadSpecFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := a.cfgRepo.Replace(ctx, spec.Name, spec); err != nil {
		return nil, nil, fmt.Errorf("store workflow %q: %w", spec.Name, err)
	}
	return spec, warnings, nil
}

// ShowWorkflow возвращает сохранённое определение workflow.
func (a *Admin) ShowWorkflow(ctx context.Context, name string) (*store.StoredWorkflow, *workflow.Spec, error) {
	stored, err := a.cfgRepo.Load(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("workflow %q not found", name)
	}
	if err != nil {
		return nil, nil, err
	}
	var spec workflow.Spec
	if err := yaml.Unmarshal(stored.Spec, &spec); err != nil {
		return nil, nil, fmt.Errorf("decode stored workflow: %w", err)
	}
	return stored, &spec, nil
}

// SweepLocks возвращает в пул документы с истёкшими блокировками.
func (a *Admin) SweepLocks(ctx context.Context) (int64, error) {
	return a.docStore.ForceResetExpiredLocks(ctx)
}

// ListAgents возвращает heartbeat-статусы всех агентов.
func (a *Admin) ListAgents(ctx context.Context) ([]store.AgentStatusRow, error) {
	return a.statusRepo.List(ctx)
}

// StaleAfter — возраст heartbeat'а, после которого агент считается STALE.
const StaleAfter = 30 * time.Second
