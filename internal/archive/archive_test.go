package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDir_ArchiveFile(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "feed.xml")
	if err := os.WriteFile(src, []byte("<feed/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	d := NewDir(root)
	d.now = func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) }

	ref, err := d.ArchiveFile(context.Background(), src, map[string]any{"source": "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != filepath.Join("2026", "08", "31", "feed.xml") {
		t.Errorf("unexpected archive reference %q", ref)
	}

	// Артефакт и sidecar с метаданными лежат под корнем
	data, err := os.ReadFile(filepath.Join(root, ref))
	if err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	if string(data) != "<feed/>" {
		t.Errorf("archived content mismatch: %q", data)
	}

	metaRaw, err := os.ReadFile(filepath.Join(root, ref+".meta.json"))
	if err != nil {
		t.Fatalf("metadata sidecar missing: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		t.Fatalf("metadata not valid json: %v", err)
	}
	if meta["source"] != "test" {
		t.Errorf("unexpected metadata %v", meta)
	}
}

func TestDir_MissingSourceIsNotTransport(t *testing.T) {
	d := NewDir(t.TempDir())

	_, err := d.ArchiveFile(context.Background(), "/no/such/file", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	// Отсутствующий исходник — не сбой транспорта
	if errors.Is(err, ErrTransport) {
		t.Error("missing source must not classify as transport failure")
	}
}

func TestDir_UnwritableRootIsTransport(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "feed.xml")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	if err := os.Chmod(root, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(root, 0o755) })

	d := NewDir(root)
	_, err := d.ArchiveFile(context.Background(), src, nil)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected transport failure, got %v", err)
	}
}

func TestNop(t *testing.T) {
	ref, err := Nop{}.ArchiveFile(context.Background(), "/path/feed.xml", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "/path/feed.xml" {
		t.Errorf("nop should return the source path, got %q", ref)
	}
}
