package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDocState_CanTransitionTo(t *testing.T) {
	// Только WORKING→READY и READY→PUBLISHED легальны
	legal := []struct{ from, to DocState }{
		{DocStateWorking, DocStateReady},
		{DocStateReady, DocStatePublished},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to DocState }{
		{DocStateWorking, DocStatePublished},
		{DocStateReady, DocStateWorking},
		{DocStatePublished, DocStateReady},
		{DocStatePublished, DocStateWorking},
	}
	for _, tc := range illegal {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestDocument_SetState(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateWorking)

	if err := doc.SetState(DocStateReady); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.State != DocStateReady {
		t.Errorf("expected READY, got %s", doc.State)
	}

	// Пропуск состояния запрещён
	doc2 := NewDocument("d2", "news", DocStateWorking)
	if err := doc2.SetState(DocStatePublished); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if doc2.State != DocStateWorking {
		t.Errorf("failed transition must not change state, got %s", doc2.State)
	}
}

func TestDocument_PendingWorkInvariant(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)

	if doc.PendingWork {
		t.Error("new document without actions should not have pending work")
	}

	doc.SetPendingActions([]string{"split_news", "publish_news"})
	if !doc.PendingWork {
		t.Error("document with pending actions should have pending work")
	}

	// Ошибка снимает pending_work, даже при непустой очереди
	doc.AddOpsError("split_news", errors.New("source unavailable"))
	if doc.PendingWork {
		t.Error("errored document must not have pending work")
	}
	if len(doc.PendingActions) != 2 {
		t.Errorf("pending actions must stay in place, got %d", len(doc.PendingActions))
	}

	// Очистка ошибок восстанавливает pending_work
	doc.ClearErrors()
	if !doc.PendingWork {
		t.Error("cleared document with pending actions should have pending work")
	}

	doc.RemovePendingAction("split_news")
	doc.RemovePendingAction("publish_news")
	if doc.PendingWork {
		t.Error("document with empty queue should not have pending work")
	}
}

func TestDocument_ErrorAccumulation(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)

	doc.AddOpsError("collect_news", errors.New("timeout"))
	doc.AddOpsError("collect_news", errors.New("timeout again"))
	doc.AddDevError("split_news", errors.New("nil pointer"))

	if len(doc.OpsErrors["collect_news"]) != 2 {
		t.Errorf("expected 2 ops errors, got %d", len(doc.OpsErrors["collect_news"]))
	}
	if len(doc.DevErrors["split_news"]) != 1 {
		t.Errorf("expected 1 dev error, got %d", len(doc.DevErrors["split_news"]))
	}
	if !doc.Errored() {
		t.Error("document with errors should report Errored")
	}
}

func TestDocument_UpdateFromDraft_RejectsIdentityChange(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)
	doc.Content = map[string]any{"body": "text"}

	draft := doc.ToActionDocument()
	draft.DocumentID = "other"
	draft.Content["body"] = "changed"

	if err := doc.UpdateFromDraft(draft, false); !errors.Is(err, ErrIDChange) {
		t.Fatalf("expected ErrIDChange, got %v", err)
	}
	// Отклонение целиком: никакие поля draft не применяются
	if doc.DocumentID != "d1" {
		t.Errorf("document id must be unchanged, got %s", doc.DocumentID)
	}
	if doc.Content["body"] != "text" {
		t.Errorf("content must be unchanged, got %v", doc.Content["body"])
	}
}

func TestDocument_UpdateFromDraft_PublishMayChangeID(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)

	draft := doc.ToActionDocument()
	draft.DocumentID = "caller-assigned"
	draft.Title = "Breaking"

	if err := doc.UpdateFromDraft(draft, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.DocumentID != "caller-assigned" {
		t.Errorf("expected caller-assigned id, got %s", doc.DocumentID)
	}
	if doc.Title != "Breaking" {
		t.Errorf("expected title applied, got %q", doc.Title)
	}
}

func TestDocument_DraftIsolation(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)
	doc.Content = map[string]any{"body": "original"}

	draft := doc.ToActionDocument()
	draft.Content["body"] = "mutated"

	// Мутации отброшенного draft не видны документу
	if doc.Content["body"] != "original" {
		t.Errorf("draft mutation leaked into document: %v", doc.Content["body"])
	}
}

func TestNewTriggerDocument(t *testing.T) {
	doc := NewTriggerDocument("collect_news")

	if doc.Type != TriggerType("collect_news") {
		t.Errorf("unexpected trigger type %q", doc.Type)
	}
	if !doc.DocSpec().IsTrigger() {
		t.Error("trigger document docspec should be recognized as trigger")
	}
	if doc.State != DocStateReady {
		t.Errorf("trigger document should be READY, got %s", doc.State)
	}
	if len(doc.PendingActions) != 1 || doc.PendingActions[0] != "collect_news" {
		t.Errorf("trigger document should pend exactly its action, got %v", doc.PendingActions)
	}
	if !doc.PendingWork {
		t.Error("trigger document should have pending work")
	}

	// Детерминированный id: повторные trigger'ы схлопываются в хранилище
	if doc.DocumentID != NewTriggerDocument("collect_news").DocumentID {
		t.Error("trigger document id should be deterministic")
	}
}

func TestDocument_InheritProvenance(t *testing.T) {
	parent := NewDocument("p1", "raw_news", DocStateReady)
	parent.CollectionTaskIDs = []string{"task-1", "task-2"}
	parent.ArchiveFiles = []string{"2026/08/31/a.xml"}

	child := NewDocument("c1", "news_item", DocStateReady)
	child.InheritProvenance(parent)

	if len(child.CollectionTaskIDs) != 2 {
		t.Errorf("expected inherited task ids, got %v", child.CollectionTaskIDs)
	}
	if len(child.ArchiveFiles) != 1 {
		t.Errorf("expected inherited archive files, got %v", child.ArchiveFiles)
	}

	// Копия, не разделяемый slice
	parent.CollectionTaskIDs[0] = "mutated"
	if child.CollectionTaskIDs[0] == "mutated" {
		t.Error("provenance must be copied, not shared")
	}
}

func TestParseDocSpec(t *testing.T) {
	spec, err := ParseDocSpec("news:READY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Type != "news" || spec.State != DocStateReady {
		t.Errorf("unexpected docspec %+v", spec)
	}

	if _, err := ParseDocSpec("no-state"); err == nil {
		t.Error("expected error for docspec without state")
	}
	if _, err := ParseDocSpec("news:BOGUS"); err == nil {
		t.Error("expected error for invalid state")
	}
}

func TestErrorDetail_Timestamps(t *testing.T) {
	doc := NewDocument("d1", "news", DocStateReady)
	before := time.Now().UTC()
	doc.AddOpsError("a", errors.New("x"))

	detail := doc.OpsErrors["a"][0]
	if detail.Timestamp.Before(before.Add(-time.Second)) {
		t.Error("error detail should carry a current timestamp")
	}
	if detail.Message != "x" {
		t.Errorf("unexpected message %q", detail.Message)
	}
}
