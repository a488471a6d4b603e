package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrTransport — сбой доставки артефакта в архив. Класс операционной
// ошибки: архив недоступен, попытку можно повторить.
var ErrTransport = errors.New("archive transport failure")

// Archiver — приёмник исходных артефактов collect-действий.
//
// ArchiveFile сохраняет файл вместе с метаданными и возвращает
// архивную ссылку, которую документ несёт в ArchiveFiles.
type Archiver interface {
	ArchiveFile(ctx context.Context, path string, meta map[string]any) (string, error)
}

// Dir — файловый архив: артефакты раскладываются по датированным
// каталогам под общим корнем, метаданные — в sidecar-файле рядом.
type Dir struct {
	root string

	// now подменяется в тестах.
	now func() time.Time
}

// NewDir создаёт файловый архив с корнем в root.
func NewDir(root string) *Dir {
	return &Dir{root: root, now: time.Now}
}

// ArchiveFile копирует файл в датированный каталог архива и пишет
// метаданные в <имя>.meta.json рядом. Возвращает путь относительно
// корня архива.
func (d *Dir) ArchiveFile(ctx context.Context, path string, meta map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	day := d.now().UTC().Format("2006/01/02")
	relDir := day
	dstDir := filepath.Join(d.root, relDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create archive dir: %v", ErrTransport, err)
	}

	name := filepath.Base(path)
	rel := filepath.Join(relDir, name)
	if err := copyFile(path, filepath.Join(dstDir, name)); err != nil {
		return "", err
	}

	if meta != nil {
		encoded, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("encode archive metadata: %w", err)
		}
		metaPath := filepath.Join(dstDir, name+".meta.json")
		if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
			return "", fmt.Errorf("%w: write archive metadata: %v", ErrTransport, err)
		}
	}

	return rel, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create archive file: %v", ErrTransport, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: copy to archive: %v", ErrTransport, err)
	}
	return out.Close()
}

// Nop — архив-заглушка для конфигураций без архивации: возвращает
// исходный путь как архивную ссылку.
type Nop struct{}

func (Nop) ArchiveFile(_ context.Context, path string, _ map[string]any) (string, error) {
	return path, nil
}
