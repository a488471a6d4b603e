package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armagh-dev/armag-sub002/internal/actions"
	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
)

// executePublish — семантика publish: действие назначает каллер-видимый
// document_id, после чего документ переходит в PUBLISHED и замещает
// прежнюю опубликованную копию той же пары (document_id, type).
//
// Монотонность: входящий документ со смысловой меткой старше уже
// опубликованной отклоняется через abort — опубликованная копия
// остаётся нетронутой, а устаревший кандидат возвращается в пул.
func (a *Agent) executePublish(ctx context.Context, doc *domain.Document, publisher actions.Publisher, def *domain.ActionDef) (outcome, error) {
	draft := doc.ToActionDocument()
	priorVersion := doc.Version

	if err := publisher.Publish(ctx, draft); err != nil {
		return outcomeErr, err
	}

	if draft.DocumentID == "" {
		draft.DocumentID = uuid.NewString()
	}
	draft.Type = def.Output.Type

	existing, err := a.store.GetPublished(ctx, draft.DocumentID, draft.Type)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return outcomeErr, fmt.Errorf("lookup published copy: %w", err)
	}

	if existing != nil && draft.DocumentTimestamp != nil && existing.DocumentTimestamp != nil &&
		draft.DocumentTimestamp.Before(*existing.DocumentTimestamp) {
		telemetry.PublishConflicts.Inc()
		return outcomeErr, fmt.Errorf(
			"%w: %w: candidate %q has timestamp %s, published copy has %s",
			actions.ErrAbort, ErrStalePublish, draft.DocumentID,
			draft.DocumentTimestamp.Format(time.RFC3339),
			existing.DocumentTimestamp.Format(time.RFC3339),
		)
	}

	// Publish — единственный тип действия с правом менять идентичность.
	if err := doc.UpdateFromDraft(draft, true); err != nil {
		return outcomeErr, err
	}

	doc.Version = a.nextVersion(draft, existing, priorVersion)

	if existing != nil {
		mergeFromPublished(doc, existing)
		doc.PublishedID = &existing.InternalID
	}

	now := time.Now().UTC()
	doc.PublishedAt = &now
	if doc.DocumentTimestamp == nil {
		doc.DocumentTimestamp = &now
	}

	if err := doc.SetState(domain.DocStatePublished); err != nil {
		return outcomeErr, fmt.Errorf("publish from state %s: %w", doc.State, err)
	}

	// Пост-publish работа (consume-действия) планируется из нового docspec.
	doc.SetPendingActions(a.resolver.ActionsForDocSpec(doc.DocSpec()))

	doc.MarkForPublish()
	return outcomeTerminal, nil
}

// nextVersion вычисляет версию публикуемого документа.
//
// По умолчанию — инкремент версии замещаемой копии (1 при первой
// публикации). Явный bump из действия принимается, только если он
// строго выше опубликованной версии; иначе игнорируется с warn.
func (a *Agent) nextVersion(draft *domain.ActionDocument, existing *domain.Document, priorVersion int) int {
	published := 0
	if existing != nil {
		published = existing.Version
	}
	next := published + 1

	if draft.Version != priorVersion {
		if draft.Version > published {
			return draft.Version
		}
		a.logger.Warn("explicit version bump not above published copy, using increment",
			"document_id", draft.DocumentID,
			"requested", draft.Version,
			"published", published,
		)
	}
	return next
}

// mergeFromPublished переносит вперёд поля замещаемой опубликованной
// копии, не заданные на новом документе. Ошибки сливаются по имени
// действия; при коллизии побеждают записи нового документа.
func mergeFromPublished(doc, existing *domain.Document) {
	if doc.Title == "" {
		doc.Title = existing.Title
	}
	if doc.Copyright == "" {
		doc.Copyright = existing.Copyright
	}
	if len(doc.CollectionTaskIDs) == 0 {
		doc.CollectionTaskIDs = append([]string(nil), existing.CollectionTaskIDs...)
	}
	if len(doc.ArchiveFiles) == 0 {
		doc.ArchiveFiles = append([]string(nil), existing.ArchiveFiles...)
	}

	for name, details := range existing.DevErrors {
		if _, ok := doc.DevErrors[name]; ok {
			continue
		}
		if doc.DevErrors == nil {
			doc.DevErrors = make(map[string][]domain.ErrorDetail)
		}
		doc.DevErrors[name] = append([]domain.ErrorDetail(nil), details...)
	}
	for name, details := range existing.OpsErrors {
		if _, ok := doc.OpsErrors[name]; ok {
			continue
		}
		if doc.OpsErrors == nil {
			doc.OpsErrors = make(map[string][]domain.ErrorDetail)
		}
		doc.OpsErrors[name] = append([]domain.ErrorDetail(nil), details...)
	}
}
