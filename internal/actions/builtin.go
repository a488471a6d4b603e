package actions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/archive"
	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// LockSweeper — контракт административного сброса истёкших блокировок.
// Реализуется хранилищем документов.
type LockSweeper interface {
	ForceResetExpiredLocks(ctx context.Context) (int64, error)
}

// Deps — зависимости встроенных действий, захватываемые фабриками
// при регистрации.
type Deps struct {
	Logger   *slog.Logger
	Sweeper  LockSweeper
	Archiver archive.Archiver
}

// RegisterBuiltins регистрирует встроенные реализации действий.
//
// Регистрирует: file_collect, json_split, metadata_stamp,
// static_publish, lock_sweep.
func RegisterBuiltins(r *Registry, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	archiver := deps.Archiver
	if archiver == nil {
		archiver = archive.Nop{}
	}

	r.Register("file_collect", func(def domain.ActionDef) (Action, error) {
		dir, _ := def.Config["source_dir"].(string)
		if dir == "" {
			return nil, fmt.Errorf("%w: file_collect requires source_dir", ErrBadConfig)
		}
		remove, _ := def.Config["remove"].(bool)
		return &fileCollect{name: def.Name, dir: dir, remove: remove, archiver: archiver, logger: logger}, nil
	})

	r.Register("json_split", func(def domain.ActionDef) (Action, error) {
		key, _ := def.Config["items_key"].(string)
		if key == "" {
			key = "items"
		}
		return &jsonSplit{name: def.Name, itemsKey: key}, nil
	})

	r.Register("metadata_stamp", func(def domain.ActionDef) (Action, error) {
		return &metadataStamp{name: def.Name}, nil
	})

	r.Register("static_publish", func(def domain.ActionDef) (Action, error) {
		idKey, _ := def.Config["id_key"].(string)
		return &staticPublish{name: def.Name, idKey: idKey}, nil
	})

	r.Register("lock_sweep", func(def domain.ActionDef) (Action, error) {
		if deps.Sweeper == nil {
			return nil, fmt.Errorf("%w: lock_sweep requires a sweeper", ErrBadConfig)
		}
		return &lockSweep{name: def.Name, sweeper: deps.Sweeper, logger: logger}, nil
	})
}

// fileCollect собирает файлы из локального каталога: один выходной
// документ на файл. Каждый файл архивируется до эмиссии, чтобы исходник
// был доступен оператору и после сбоя разбора.
type fileCollect struct {
	name     string
	dir      string
	remove   bool
	archiver archive.Archiver
	logger   *slog.Logger
}

func (a *fileCollect) Name() string { return a.name }

func (a *fileCollect) Collect(ctx context.Context, _ *domain.ActionDocument, emit Emit) error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return OpsErrorf("read source dir %q: %v", a.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(a.dir, entry.Name())

		ref, err := a.archiver.ArchiveFile(ctx, path, map[string]any{
			"action":       a.name,
			"source_path":  path,
			"collected_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("archive %q: %w", path, err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return OpsErrorf("read source file %q: %v", path, err)
		}

		out := &Output{
			Title:        entry.Name(),
			Raw:          raw,
			Metadata:     map[string]any{"source_path": path},
			ArchiveFiles: []string{ref},
		}
		if err := emit(ctx, out); err != nil {
			return fmt.Errorf("emit %q: %w", path, err)
		}

		if a.remove {
			if err := os.Remove(path); err != nil {
				a.logger.Warn("failed to remove collected file", "path", path, "error", err)
			}
		}
	}
	return nil
}

// jsonSplit разбивает массив в content по элементам: один выходной
// документ на элемент.
type jsonSplit struct {
	name     string
	itemsKey string
}

func (a *jsonSplit) Name() string { return a.name }

func (a *jsonSplit) Split(ctx context.Context, doc *domain.ActionDocument, emit Emit) error {
	items, ok := doc.Content[a.itemsKey].([]any)
	if !ok {
		return OpsErrorf("content field %q is not an array", a.itemsKey)
	}
	for i, item := range items {
		content, ok := item.(map[string]any)
		if !ok {
			content = map[string]any{"value": item}
		}
		out := &Output{
			Title:             doc.Title,
			Copyright:         doc.Copyright,
			Content:           content,
			DocumentTimestamp: doc.DocumentTimestamp,
		}
		if err := emit(ctx, out); err != nil {
			return fmt.Errorf("emit item %d: %w", i, err)
		}
	}
	return nil
}

// metadataStamp отмечает в metadata факт и время потребления.
type metadataStamp struct {
	name string
}

func (a *metadataStamp) Name() string { return a.name }

func (a *metadataStamp) Consume(ctx context.Context, pub *domain.PublishedView) error {
	pub.Metadata["consumed_by"] = a.name
	pub.Metadata["consumed_at"] = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// staticPublish назначает document_id из поля content (если сконфигурировано)
// и проставляет document_timestamp, когда он не задан.
type staticPublish struct {
	name  string
	idKey string
}

func (a *staticPublish) Name() string { return a.name }

func (a *staticPublish) Publish(ctx context.Context, doc *domain.ActionDocument) error {
	if a.idKey != "" {
		id, ok := doc.Content[a.idKey].(string)
		if !ok || id == "" {
			return OpsErrorf("content field %q does not hold a document id", a.idKey)
		}
		doc.DocumentID = id
	}
	if doc.DocumentTimestamp == nil {
		now := time.Now().UTC()
		doc.DocumentTimestamp = &now
	}
	return nil
}

// lockSweep — utility-действие, возвращающее документы с истёкшими
// блокировками в pending-пул.
type lockSweep struct {
	name    string
	sweeper LockSweeper
	logger  *slog.Logger
}

func (a *lockSweep) Name() string { return a.name }

func (a *lockSweep) Run(ctx context.Context) error {
	n, err := a.sweeper.ForceResetExpiredLocks(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired locks: %w", err)
	}
	if n > 0 {
		a.logger.Info("lock sweep reclaimed documents", "action", a.name, "count", n)
	}
	return nil
}
