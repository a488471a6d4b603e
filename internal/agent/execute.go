package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/armagh-dev/armag-sub002/internal/actions"
	"github.com/armagh-dev/armag-sub002/internal/archive"
	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
)

// outcome — результат выполнения одного действия.
type outcome int

const (
	// outcomeOK — действие выполнено, документ остаётся в проходе;
	// действие снимается с очереди.
	outcomeOK outcome = iota

	// outcomeTerminal — документ получил терминальную disposition
	// (delete/history/publish); проход завершается.
	outcomeTerminal

	// outcomeErr — ошибка записана на документ; оставшиеся действия
	// abandoned in place.
	outcomeErr

	// outcomeAbort — действие подало abort; результат отброшен,
	// документ возвращается в пул нетронутым.
	outcomeAbort
)

// processDocument проходит документ по его списку pending-действий.
//
// Действия выполняются строго в порядке очереди и снимаются по мере
// завершения — если документ не накопил ошибку: тогда оставшиеся
// действия остаются на месте, чтобы документ был виден оператору
// целиком с оставшейся работой.
func (a *Agent) processDocument(ctx context.Context, doc *domain.Document) {
	logger := telemetry.WithDocument(a.logger, doc.InternalID.String())
	a.setState(StateClaimed, doc.DocSpec().String())

	logger.Info("document claimed",
		"document_id", doc.DocumentID,
		"docspec", doc.DocSpec().String(),
		"pending_actions", len(doc.PendingActions),
	)

	aborted := false
	terminal := false

	for !terminal && !aborted {
		if doc.Errored() || len(doc.PendingActions) == 0 {
			break
		}
		name := doc.PendingActions[0]

		switch a.executeAction(ctx, doc, name, logger) {
		case outcomeOK:
			doc.RemovePendingAction(name)
		case outcomeTerminal:
			terminal = true
		case outcomeAbort:
			aborted = true
		case outcomeErr:
			// Ошибка уже записана; верх цикла прекратит проход.
		}
	}

	a.setState(StateDone, "")
	a.finish(ctx, doc, aborted, logger)
}

// finish сохраняет терминальную disposition прохода.
//
// Abort — не ошибка: мутации отброшены, блокировка снята, документ
// остаётся в pending-пуле для будущей попытки. Документ с накопленными
// ошибками перемещается в failures (если не опубликован) или остаётся
// на месте с error-флагом (если опубликован) — он никогда не
// теряется молча.
func (a *Agent) finish(ctx context.Context, doc *domain.Document, aborted bool, logger *slog.Logger) {
	if aborted {
		doc.Aborted = true
		doc.ResetDisposition()
		if err := a.store.ReleaseLock(ctx, doc); err != nil {
			logger.Error("failed to release lock after abort", "error", err)
		}
		telemetry.DocumentsProcessed.WithLabelValues("aborted").Inc()
		logger.Info("document pass aborted, returned to pending pool")
		return
	}

	if doc.Errored() && doc.Disposition == domain.DispositionPending &&
		doc.State != domain.DocStatePublished {
		doc.MarkForFailure()
	}

	disposition := string(doc.Disposition)
	if err := a.store.Save(ctx, doc, true); err != nil {
		var sizeErr *store.SizeError
		if errors.As(err, &sizeErr) {
			// Превышение потолка не retryable: роутим в ops-ошибку,
			// сбрасываем полезную нагрузку и сохраняем в failures.
			logger.Error("document exceeds size limit, payload dropped", "error", err)
			actionName := ""
			if len(doc.PendingActions) > 0 {
				actionName = doc.PendingActions[0]
			}
			doc.AddOpsError(actionName, err)
			doc.Content = nil
			doc.Raw = nil
			doc.MarkForFailure()
			disposition = string(doc.Disposition)
			err = a.store.Save(ctx, doc, true)
		}
		if err != nil {
			logger.Error("document save failed", "error", err, "disposition", disposition)
			a.notifyDev(ctx, "", doc.InternalID.String(),
				fmt.Sprintf("document save failed: %v", err))
			return
		}
	}

	telemetry.DocumentsProcessed.WithLabelValues(disposition).Inc()
	logger.Info("document pass finished",
		"disposition", disposition,
		"errored", doc.Errored(),
		"pending_actions", len(doc.PendingActions),
	)
}

// executeAction выполняет одно действие против документа.
//
// Неразрешимое действие (удалено или деактивировано между планированием
// и выполнением) — ops-ошибка на документе, не крах: нормальная гонка
// при конкурентной переконфигурации.
func (a *Agent) executeAction(ctx context.Context, doc *domain.Document, name string, logger *slog.Logger) outcome {
	action, def, err := a.resolver.Instantiate(name)
	if err != nil {
		logger.Warn("action not resolvable", "action", name, "error", err)
		a.recordOps(ctx, doc, name, err)
		return outcomeErr
	}

	// Свежий scratch-каталог на каждое выполнение; удаляется после.
	workDir, err := os.MkdirTemp(a.workRoot, "armagh-action-")
	if err != nil {
		a.recordOps(ctx, doc, name, fmt.Errorf("create scratch dir: %w", err))
		return outcomeErr
	}
	defer os.RemoveAll(workDir)

	actx := actions.WithWorkDir(ctx, workDir)
	alog := telemetry.WithAction(logger, name)
	a.setState(StateExecuting, name)
	alog.Debug("action started", "type", def.Type)

	var result outcome
	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("action panic: %v", r)
			}
		}()
		result, execErr = a.dispatch(actx, doc, action, def)
	}()
	telemetry.ActionsExecuted.WithLabelValues(string(def.Type)).Inc()

	if execErr == nil {
		alog.Info("action succeeded", "type", def.Type)
		return result
	}

	switch {
	case errors.Is(execErr, actions.ErrAbort):
		alog.Warn("action aborted", "reason", execErr)
		return outcomeAbort
	case isOpsClass(execErr):
		alog.Warn("action failed", "error", execErr)
		a.recordOps(ctx, doc, name, execErr)
	default:
		alog.Error("action failed with unexpected error", "error", execErr)
		a.recordDev(ctx, doc, name, execErr)
	}
	return outcomeErr
}

// dispatch выполняет семантику объявленного типа действия.
func (a *Agent) dispatch(ctx context.Context, doc *domain.Document, action actions.Action, def *domain.ActionDef) (outcome, error) {
	switch def.Type {
	case domain.ActionTypeCollect:
		collector, ok := action.(actions.Collector)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a collector", ErrTypeMismatch, def.Name)
		}
		return a.executeCollect(ctx, doc, collector, def)

	case domain.ActionTypeSplit:
		splitter, ok := action.(actions.Splitter)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a splitter", ErrTypeMismatch, def.Name)
		}
		return a.executeSplit(ctx, doc, splitter.Split, def)

	case domain.ActionTypeDivide:
		divider, ok := action.(actions.Divider)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a divider", ErrTypeMismatch, def.Name)
		}
		return a.executeSplit(ctx, doc, divider.Divide, def)

	case domain.ActionTypePublish:
		publisher, ok := action.(actions.Publisher)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a publisher", ErrTypeMismatch, def.Name)
		}
		return a.executePublish(ctx, doc, publisher, def)

	case domain.ActionTypeConsume:
		consumer, ok := action.(actions.Consumer)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a consumer", ErrTypeMismatch, def.Name)
		}
		return a.executeConsume(ctx, doc, consumer)

	case domain.ActionTypeUtility:
		utility, ok := action.(actions.Utility)
		if !ok {
			return outcomeErr, fmt.Errorf("%w: %q is not a utility", ErrTypeMismatch, def.Name)
		}
		if err := utility.Run(ctx); err != nil {
			return outcomeErr, err
		}
		// Запись-триггер utility-действия всегда удаляется.
		doc.MarkForDelete()
		return outcomeTerminal, nil

	default:
		return outcomeErr, fmt.Errorf("unknown action type %q", def.Type)
	}
}

// executeCollect — семантика collect: действие порождает ноль и более
// новых документов через emit-callback. Trigger-документ удаляется при
// пустом выходе, иначе архивируется в collection_history. Происхождение
// выходов начинается с id самого trigger-документа.
func (a *Agent) executeCollect(ctx context.Context, doc *domain.Document, collector actions.Collector, def *domain.ActionDef) (outcome, error) {
	draft := doc.ToActionDocument()
	emitted := 0

	emit := a.newEmit(def, func(out *domain.Document) {
		out.CollectionTaskIDs = append(append([]string(nil), doc.CollectionTaskIDs...), doc.DocumentID)
		emitted++
	})

	if err := collector.Collect(ctx, draft, emit); err != nil {
		return outcomeErr, err
	}

	if emitted == 0 {
		doc.MarkForDelete()
	} else {
		doc.MarkForHistory()
	}
	return outcomeTerminal, nil
}

// executeSplit — общая семантика split и divide: выходы наследуют
// происхождение, исходный документ после успеха всегда удаляется.
func (a *Agent) executeSplit(ctx context.Context, doc *domain.Document, split func(context.Context, *domain.ActionDocument, actions.Emit) error, def *domain.ActionDef) (outcome, error) {
	draft := doc.ToActionDocument()

	emit := a.newEmit(def, func(out *domain.Document) {
		out.InheritProvenance(doc)
	})

	if err := split(ctx, draft, emit); err != nil {
		return outcomeErr, err
	}

	doc.MarkForDelete()
	return outcomeTerminal, nil
}

// executeConsume — семантика consume: действию доступен read-вид
// опубликованного документа; применяется обратно только metadata.
func (a *Agent) executeConsume(ctx context.Context, doc *domain.Document, consumer actions.Consumer) (outcome, error) {
	view := doc.ToPublishedView()
	if err := consumer.Consume(ctx, view); err != nil {
		return outcomeErr, err
	}
	doc.Metadata = view.Metadata
	return outcomeOK, nil
}

// newEmit строит emit-callback, создающий выходной документ в docspec
// выхода действия с pending-действиями из текущего снимка workflow.
func (a *Agent) newEmit(def *domain.ActionDef, decorate func(*domain.Document)) actions.Emit {
	return func(ctx context.Context, out *actions.Output) error {
		documentID := out.DocumentID
		if documentID == "" {
			documentID = uuid.NewString()
		}

		newDoc := domain.NewDocument(documentID, def.Output.Type, def.Output.State)
		newDoc.Content = out.Content
		newDoc.Raw = out.Raw
		if out.Metadata != nil {
			newDoc.Metadata = out.Metadata
		}
		newDoc.Title = out.Title
		newDoc.Copyright = out.Copyright
		newDoc.DocumentTimestamp = out.DocumentTimestamp
		newDoc.ArchiveFiles = append([]string(nil), out.ArchiveFiles...)
		decorate(newDoc)
		newDoc.SetPendingActions(a.resolver.ActionsForDocSpec(def.Output))

		if err := a.store.Create(ctx, newDoc); err != nil {
			return fmt.Errorf("create output document %q: %w", documentID, err)
		}
		return nil
	}
}

// recordOps записывает операционную ошибку на документ и алертит.
func (a *Agent) recordOps(ctx context.Context, doc *domain.Document, actionName string, err error) {
	doc.AddOpsError(actionName, err)
	telemetry.ActionErrors.WithLabelValues("ops").Inc()
	a.notifyOps(ctx, actionName, doc.InternalID.String(), err.Error())
}

// recordDev записывает dev-ошибку на документ и эскалирует алерт.
func (a *Agent) recordDev(ctx context.Context, doc *domain.Document, actionName string, err error) {
	doc.AddDevError(actionName, err)
	telemetry.ActionErrors.WithLabelValues("dev").Inc()
	a.notifyDev(ctx, actionName, doc.InternalID.String(), err.Error())
}

// isOpsClass классифицирует ошибку как операционную: ожидаемые проблемы
// окружения и данных. Всё остальное — dev (сигнал бага).
func isOpsClass(err error) bool {
	if actions.IsOps(err) {
		return true
	}
	var sizeErr *store.SizeError
	var connErr *store.ConnectionError
	return errors.Is(err, store.ErrDuplicateDocument) ||
		errors.Is(err, archive.ErrTransport) ||
		errors.As(err, &sizeErr) ||
		errors.As(err, &connErr)
}
