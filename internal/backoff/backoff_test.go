package backoff

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Growth(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2}

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // потолок
		30 * time.Second,
	}
	for i, want := range expected {
		if got := b.Next(); got != want {
			t.Errorf("attempt %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestBackoff_Jitter(t *testing.T) {
	b := &Backoff{Min: 10 * time.Second, Max: time.Minute, Factor: 2, Jitter: 0.25}

	d := b.Next()
	if d < 7500*time.Millisecond || d > 12500*time.Millisecond {
		t.Errorf("jittered delay out of range: %s", d)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2}

	b.Next()
	b.Next()
	if b.Attempt() != 2 {
		t.Fatalf("expected attempt 2, got %d", b.Attempt())
	}

	b.Reset()
	if b.Attempt() != 0 {
		t.Errorf("expected attempt 0 after reset, got %d", b.Attempt())
	}
	if got := b.Next(); got != time.Second {
		t.Errorf("expected min delay after reset, got %s", got)
	}
}

func TestBackoff_WaitObservesCancel(t *testing.T) {
	b := &Backoff{Min: time.Minute, Max: time.Minute, Factor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	start := time.Now()
	err := b.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wait did not return promptly after cancel")
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := New()
	if got := b.Next(); got < 750*time.Millisecond || got > 1250*time.Millisecond {
		t.Errorf("default first delay out of range: %s", got)
	}
}
