package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/armagh-dev/armag-sub002/internal/archive"
	"github.com/armagh-dev/armag-sub002/internal/domain"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	RegisterBuiltins(r, Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sweeper:  &fakeSweeper{},
		Archiver: archive.Nop{},
	})
	return r
}

type fakeSweeper struct {
	reclaimed int64
	err       error
}

func (s *fakeSweeper) ForceResetExpiredLocks(ctx context.Context) (int64, error) {
	return s.reclaimed, s.err
}

func TestRegistry_UnknownImpl(t *testing.T) {
	r := testRegistry(t)

	_, err := r.New(domain.ActionDef{Name: "x", Impl: "no_such_impl"})
	if !errors.Is(err, ErrUnknownImpl) {
		t.Errorf("expected ErrUnknownImpl, got %v", err)
	}
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := testRegistry(t)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("json_split", func(def domain.ActionDef) (Action, error) { return nil, nil })
}

func TestRegistry_Impls(t *testing.T) {
	r := testRegistry(t)

	for _, impl := range []string{"file_collect", "json_split", "metadata_stamp", "static_publish", "lock_sweep"} {
		if !r.Known(impl) {
			t.Errorf("builtin %q not registered", impl)
		}
	}
}

func TestJSONSplit(t *testing.T) {
	r := testRegistry(t)
	action, err := r.New(domain.ActionDef{Name: "split_items", Impl: "json_split"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	splitter := action.(Splitter)

	doc := &domain.ActionDocument{
		Title: "batch",
		Content: map[string]any{
			"items": []any{
				map[string]any{"id": "a"},
				"plain string",
			},
		},
	}

	var outputs []*Output
	emit := func(ctx context.Context, out *Output) error {
		outputs = append(outputs, out)
		return nil
	}

	if err := splitter.Split(context.Background(), doc, emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if outputs[0].Content["id"] != "a" {
		t.Errorf("unexpected first output: %v", outputs[0].Content)
	}
	// Скалярный элемент оборачивается в value
	if outputs[1].Content["value"] != "plain string" {
		t.Errorf("unexpected second output: %v", outputs[1].Content)
	}
	if outputs[0].Title != "batch" {
		t.Errorf("title should carry over, got %q", outputs[0].Title)
	}
}

func TestJSONSplit_MissingArrayIsOpsError(t *testing.T) {
	r := testRegistry(t)
	action, _ := r.New(domain.ActionDef{Name: "split_items", Impl: "json_split"})

	doc := &domain.ActionDocument{Content: map[string]any{"items": "not an array"}}
	err := action.(Splitter).Split(context.Background(), doc, func(ctx context.Context, out *Output) error { return nil })
	if !IsOps(err) {
		t.Errorf("expected ops error, got %v", err)
	}
}

func TestStaticPublish(t *testing.T) {
	r := testRegistry(t)
	action, _ := r.New(domain.ActionDef{
		Name:   "publish_items",
		Impl:   "static_publish",
		Config: map[string]any{"id_key": "sku"},
	})
	publisher := action.(Publisher)

	doc := &domain.ActionDocument{Content: map[string]any{"sku": "ABC-1"}}
	if err := publisher.Publish(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.DocumentID != "ABC-1" {
		t.Errorf("expected document id from content, got %q", doc.DocumentID)
	}
	if doc.DocumentTimestamp == nil {
		t.Error("expected default document timestamp")
	}

	// Отсутствующее поле id — ops-ошибка
	bad := &domain.ActionDocument{Content: map[string]any{}}
	if err := publisher.Publish(context.Background(), bad); !IsOps(err) {
		t.Errorf("expected ops error, got %v", err)
	}
}

func TestMetadataStamp(t *testing.T) {
	r := testRegistry(t)
	action, _ := r.New(domain.ActionDef{Name: "stamp", Impl: "metadata_stamp"})

	pub := &domain.PublishedView{Metadata: map[string]any{}}
	if err := action.(Consumer).Consume(context.Background(), pub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.Metadata["consumed_by"] != "stamp" {
		t.Errorf("expected consumed_by stamp, got %v", pub.Metadata)
	}
}

func TestFileCollect(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<a/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.xml"), []byte("<b/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := testRegistry(t)
	action, err := r.New(domain.ActionDef{
		Name:   "collect_files",
		Impl:   "file_collect",
		Config: map[string]any{"source_dir": dir},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var outputs []*Output
	emit := func(ctx context.Context, out *Output) error {
		outputs = append(outputs, out)
		return nil
	}

	if err := action.(Collector).Collect(context.Background(), nil, emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if outputs[0].Title != "a.xml" || string(outputs[0].Raw) != "<a/>" {
		t.Errorf("unexpected output: %q %q", outputs[0].Title, outputs[0].Raw)
	}
	if len(outputs[0].ArchiveFiles) != 1 {
		t.Errorf("expected archive reference, got %v", outputs[0].ArchiveFiles)
	}
}

func TestFileCollect_RequiresSourceDir(t *testing.T) {
	r := testRegistry(t)
	_, err := r.New(domain.ActionDef{Name: "collect_files", Impl: "file_collect"})
	if !errors.Is(err, ErrBadConfig) {
		t.Errorf("expected ErrBadConfig, got %v", err)
	}
}

func TestLockSweep(t *testing.T) {
	r := NewRegistry()
	sweeper := &fakeSweeper{reclaimed: 3}
	RegisterBuiltins(r, Deps{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Sweeper: sweeper})

	action, err := r.New(domain.ActionDef{Name: "sweep", Impl: "lock_sweep"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := action.(Utility).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sweeper.err = fmt.Errorf("db down")
	if err := action.(Utility).Run(context.Background()); err == nil {
		t.Error("expected sweep error to propagate")
	}
}

func TestOpsErrorClassification(t *testing.T) {
	err := OpsErrorf("source %q unavailable", "sftp")
	if !IsOps(err) {
		t.Error("OpsErrorf should classify as ops")
	}
	if IsOps(errors.New("plain")) {
		t.Error("plain error should not classify as ops")
	}
	// Обёртка сохраняет классификацию
	if !IsOps(fmt.Errorf("collect: %w", err)) {
		t.Error("wrapped ops error should stay ops")
	}
}

func TestWorkDirContext(t *testing.T) {
	ctx := WithWorkDir(context.Background(), "/tmp/scratch")
	if WorkDir(ctx) != "/tmp/scratch" {
		t.Errorf("unexpected work dir %q", WorkDir(ctx))
	}
	if WorkDir(context.Background()) != "" {
		t.Error("missing work dir should be empty")
	}
}
