package workflow

import (
	"context"
	"fmt"

	"github.com/armagh-dev/armag-sub002/internal/store"
)

// ConfigLoader — контракт чтения workflow-конфигурации по имени.
// Реализуется store.WorkflowConfigRepo.
type ConfigLoader interface {
	Load(ctx context.Context, name string) (*store.StoredWorkflow, error)
}

// configSource адаптирует ConfigLoader к Source для одного workflow.
type configSource struct {
	loader ConfigLoader
	name   string
}

// NewConfigSource строит Source, читающий именованную конфигурацию
// из репозитория.
func NewConfigSource(loader ConfigLoader, name string) Source {
	return &configSource{loader: loader, name: name}
}

func (s *configSource) Load(ctx context.Context) (*Stored, error) {
	wf, err := s.loader.Load(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("load workflow %q: %w", s.name, err)
	}
	return &Stored{
		Spec:       wf.Spec,
		Generation: wf.Generation,
		UpdatedAt:  wf.UpdatedAt,
	}, nil
}
