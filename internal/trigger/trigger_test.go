package trigger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCreator struct {
	created []*domain.Document
	err     error
}

func (c *fakeCreator) Create(ctx context.Context, doc *domain.Document) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, doc)
	return nil
}

type fakeWorkflows struct {
	wf *workflow.Workflow
}

func (f *fakeWorkflows) Refresh(ctx context.Context, force bool) (bool, error) { return false, nil }
func (f *fakeWorkflows) Current() *workflow.Workflow                           { return f.wf }

func compileCollect(t *testing.T, schedule string, generation int64) *workflow.Workflow {
	t.Helper()
	spec := &workflow.Spec{
		Name: "news",
		Actions: []domain.ActionDef{
			{
				Name:     "collect_news",
				Type:     domain.ActionTypeCollect,
				Impl:     "file_collect",
				Output:   domain.DocSpec{Type: "raw_news", State: domain.DocStateReady},
				Schedule: schedule,
				Active:   true,
			},
		},
	}
	wf, _, err := workflow.Compile(spec, generation)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return wf
}

func newTestTrigger(creator *fakeCreator, wfs *fakeWorkflows) *Trigger {
	return New(Config{Store: creator, Resolver: wfs, Logger: testLogger()})
}

func TestTick_FirstSightingDoesNotFire(t *testing.T) {
	creator := &fakeCreator{}
	tr := newTestTrigger(creator, &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)})
	tr.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	tr.tick(context.Background())

	if len(creator.created) != 0 {
		t.Errorf("first sighting must not fire, got %d documents", len(creator.created))
	}
}

func TestTick_FiresWhenScheduleDue(t *testing.T) {
	creator := &fakeCreator{}
	tr := newTestTrigger(creator, &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)})

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	tr.tick(context.Background())

	// До границы расписания — тишина
	now = now.Add(2 * time.Minute)
	tr.tick(context.Background())
	if len(creator.created) != 0 {
		t.Fatalf("fired before schedule boundary: %d", len(creator.created))
	}

	// Граница пройдена — ровно одно срабатывание
	now = now.Add(4 * time.Minute)
	tr.tick(context.Background())
	if len(creator.created) != 1 {
		t.Fatalf("expected 1 trigger document, got %d", len(creator.created))
	}

	doc := creator.created[0]
	if !doc.DocSpec().IsTrigger() {
		t.Errorf("expected trigger docspec, got %s", doc.DocSpec())
	}
	if len(doc.PendingActions) != 1 || doc.PendingActions[0] != "collect_news" {
		t.Errorf("trigger should pend its action, got %v", doc.PendingActions)
	}

	// Следующий тик без перехода границы — снова тишина
	now = now.Add(time.Minute)
	tr.tick(context.Background())
	if len(creator.created) != 1 {
		t.Errorf("fired again before next boundary: %d", len(creator.created))
	}
}

func TestTick_GenerationChangeResetsSchedules(t *testing.T) {
	creator := &fakeCreator{}
	wfs := &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)}
	tr := newTestTrigger(creator, wfs)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	tr.tick(context.Background())

	// Новое поколение: отсчёт начинается заново, накопленное время не в счёт
	now = now.Add(6 * time.Minute)
	wfs.wf = compileCollect(t, "*/5 * * * *", 2)
	tr.tick(context.Background())
	if len(creator.created) != 0 {
		t.Errorf("generation change must reset schedules, got %d documents", len(creator.created))
	}

	now = now.Add(6 * time.Minute)
	tr.tick(context.Background())
	if len(creator.created) != 1 {
		t.Errorf("expected fire after reset interval, got %d", len(creator.created))
	}
}

func TestTick_DuplicateTriggerTolerated(t *testing.T) {
	creator := &fakeCreator{err: store.ErrDuplicateDocument}
	tr := newTestTrigger(creator, &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)})

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	tr.tick(context.Background())

	// Необработанный прежний trigger — не ошибка
	now = now.Add(6 * time.Minute)
	tr.tick(context.Background())
}

func TestTick_EvictsRemovedActions(t *testing.T) {
	creator := &fakeCreator{}
	wfs := &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)}
	tr := newTestTrigger(creator, wfs)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	tr.tick(context.Background())

	if _, ok := tr.lastRun["collect_news"]; !ok {
		t.Fatal("expected schedule state for collect_news")
	}

	// Снимок того же поколения без действия — история вычищается
	spec := &workflow.Spec{
		Name: "news",
		Actions: []domain.ActionDef{
			{
				Name:     "collect_other",
				Type:     domain.ActionTypeCollect,
				Impl:     "file_collect",
				Output:   domain.DocSpec{Type: "other", State: domain.DocStateReady},
				Schedule: "*/5 * * * *",
				Active:   true,
			},
		},
	}
	wf, _, err := workflow.Compile(spec, 1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	wfs.wf = wf
	tr.tick(context.Background())

	if _, ok := tr.lastRun["collect_news"]; ok {
		t.Error("removed action must not keep schedule state")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	creator := &fakeCreator{}
	tr := newTestTrigger(creator, &fakeWorkflows{wf: compileCollect(t, "*/5 * * * *", 1)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not stop after cancel")
	}
}
