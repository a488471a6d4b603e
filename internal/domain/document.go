package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Disposition — терминальный исход обработки документа за один проход Agent'а.
//
// Ровно одна disposition действует на момент save; Save очищает флаг.
type Disposition string

const (
	// DispositionPending — документ сохраняется в своей партиции
	// с оставшейся работой.
	DispositionPending Disposition = "PENDING"

	// DispositionFailure — документ перемещается в failures-партицию.
	DispositionFailure Disposition = "FAILURE"

	// DispositionPublished — документ перемещается в published-партицию.
	DispositionPublished Disposition = "PUBLISHED"

	// DispositionHistory — документ архивируется в collection_history.
	DispositionHistory Disposition = "HISTORY"

	// DispositionDelete — документ удаляется без следа.
	DispositionDelete Disposition = "DELETE"
)

// ErrorDetail — запись одной ошибки действия на документе.
type ErrorDetail struct {
	// Message — текст ошибки.
	Message string `json:"message"`

	// Class — класс ошибки (имя sentinel-ошибки или тип).
	Class string `json:"class,omitempty"`

	// Timestamp — время возникновения.
	Timestamp time.Time `json:"timestamp"`
}

// Document — центральная сущность: документ, проходящий через workflow.
//
// Документ идентифицируется парой:
//   - DocumentID — назначается вызывающей стороной, меняется только
//     publish-действием
//   - InternalID — назначается хранилищем, неизменен, используется
//     для блокировки
//
// Мутация документа разрешена только под блокировкой хранилища.
// Производные поля (PendingWork) пересчитываются явными сеттерами —
// прямое присваивание PendingActions/ошибок в обход сеттеров нарушает
// инвариант pending_work == (len(pending_actions) > 0 && !error).
type Document struct {
	// InternalID — идентификатор записи в хранилище.
	InternalID uuid.UUID `json:"internal_id"`

	// DocumentID — каллер-идентификатор документа.
	DocumentID string `json:"document_id"`

	// Type — тип документа (тег).
	Type string `json:"type"`

	// State — состояние документа: WORKING, READY или PUBLISHED.
	State DocState `json:"state"`

	// Content — структурированное содержимое.
	Content map[string]any `json:"content,omitempty"`

	// Raw — опциональные непрозрачные бинарные данные.
	Raw []byte `json:"raw,omitempty"`

	// Metadata — свободные структурированные метаданные.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Title — отображаемый заголовок (переносится вперёд при publish).
	Title string `json:"title,omitempty"`

	// Copyright — информация об авторских правах (переносится при publish).
	Copyright string `json:"copyright,omitempty"`

	// PendingActions — упорядоченный список имён действий, которые
	// ещё предстоит выполнить. Мутировать через SetPendingActions /
	// AppendPendingActions / RemovePendingAction.
	PendingActions []string `json:"pending_actions,omitempty"`

	// PendingWork — производный флаг: true тогда и только тогда, когда
	// PendingActions непуст и нет накопленных ошибок.
	PendingWork bool `json:"pending_work"`

	// CollectionTaskIDs — цепочка происхождения до исходных collect-операций.
	CollectionTaskIDs []string `json:"collection_task_ids,omitempty"`

	// ArchiveFiles — ссылки на заархивированные исходные артефакты.
	ArchiveFiles []string `json:"archive_files,omitempty"`

	// DevErrors — ошибки-баги по имени действия. Накапливаются между retry.
	DevErrors map[string][]ErrorDetail `json:"dev_errors,omitempty"`

	// OpsErrors — операционные ошибки по имени действия.
	OpsErrors map[string][]ErrorDetail `json:"ops_errors,omitempty"`

	// Version — монотонная версия для (document_id, type).
	// Инкрементируется publish-действием.
	Version int `json:"version"`

	// PublishedID — internal_id замещаемого опубликованного документа.
	// Транзиентное поле, заполняется только во время publish.
	PublishedID *uuid.UUID `json:"published_id,omitempty"`

	// CreatedAt — время создания. Неизменно после установки.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего save.
	UpdatedAt time.Time `json:"updated_at"`

	// DocumentTimestamp — смысловая временная метка содержимого,
	// назначается вызывающей стороной. Основа монотонности publish.
	DocumentTimestamp *time.Time `json:"document_timestamp,omitempty"`

	// PublishedAt — время публикации.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// Disposition — терминальный исход текущего прохода.
	Disposition Disposition `json:"-"`

	// Aborted — действие подало сигнал abort; результат выполнения
	// отброшен, документ возвращается в pending-пул. Транзиентное поле.
	Aborted bool `json:"-"`
}

// NewDocument создаёт новый документ в указанном docspec.
func NewDocument(documentID, docType string, state DocState) *Document {
	now := time.Now().UTC()
	return &Document{
		InternalID:  uuid.New(),
		DocumentID:  documentID,
		Type:        docType,
		State:       state,
		Metadata:    make(map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
		Disposition: DispositionPending,
	}
}

// NewTriggerDocument создаёт лёгкий trigger-документ, который будит
// collect-действие по расписанию. Содержимого нет; единственное
// pending-действие — само collect-действие.
//
// DocumentID детерминирован (имя действия): уникальный индекс хранилища
// схлопывает повторные вставки, пока прежний trigger не обработан.
func NewTriggerDocument(actionName string) *Document {
	doc := NewDocument(actionName, TriggerType(actionName), DocStateReady)
	doc.SetPendingActions([]string{actionName})
	return doc
}

// DocSpec возвращает текущий docspec документа.
func (d *Document) DocSpec() DocSpec {
	return DocSpec{Type: d.Type, State: d.State}
}

// SetState переводит документ в новое состояние, проверяя легальность
// перехода. Переход назад или с пропуском — ошибка.
func (d *Document) SetState(next DocState) error {
	if d.State == next {
		return nil
	}
	if !d.State.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}
	d.State = next
	return nil
}

// SetPendingActions заменяет список pending-действий и пересчитывает
// PendingWork.
func (d *Document) SetPendingActions(names []string) {
	d.PendingActions = names
	d.refreshPendingWork()
}

// AppendPendingActions добавляет действия в конец очереди.
func (d *Document) AppendPendingActions(names ...string) {
	d.PendingActions = append(d.PendingActions, names...)
	d.refreshPendingWork()
}

// RemovePendingAction удаляет первое вхождение действия из очереди.
// Возвращает true, если действие присутствовало.
func (d *Document) RemovePendingAction(name string) bool {
	for i, n := range d.PendingActions {
		if n == name {
			d.PendingActions = append(d.PendingActions[:i], d.PendingActions[i+1:]...)
			d.refreshPendingWork()
			return true
		}
	}
	return false
}

// AddOpsError записывает операционную ошибку для действия.
// Операционные ошибки указывают на проблемы окружения или данных,
// с которыми может работать оператор.
func (d *Document) AddOpsError(actionName string, err error) {
	if d.OpsErrors == nil {
		d.OpsErrors = make(map[string][]ErrorDetail)
	}
	d.OpsErrors[actionName] = append(d.OpsErrors[actionName], newErrorDetail(err))
	d.refreshPendingWork()
}

// AddDevError записывает dev-ошибку для действия.
// Dev-ошибки сигнализируют о баге в коде действия или движка.
func (d *Document) AddDevError(actionName string, err error) {
	if d.DevErrors == nil {
		d.DevErrors = make(map[string][]ErrorDetail)
	}
	d.DevErrors[actionName] = append(d.DevErrors[actionName], newErrorDetail(err))
	d.refreshPendingWork()
}

// ClearErrors сбрасывает накопленные ошибки (используется при merge
// во время publish) и пересчитывает PendingWork.
func (d *Document) ClearErrors() {
	d.DevErrors = nil
	d.OpsErrors = nil
	d.refreshPendingWork()
}

// Errored возвращает производный флаг ошибки: OR по непустоте обеих карт.
func (d *Document) Errored() bool {
	return len(d.DevErrors) > 0 || len(d.OpsErrors) > 0
}

// refreshPendingWork пересчитывает производный флаг PendingWork.
// Инвариант: PendingWork == (len(PendingActions) > 0 && !Errored()).
func (d *Document) refreshPendingWork() {
	d.PendingWork = len(d.PendingActions) > 0 && !d.Errored()
}

// MarkForFailure помечает документ к перемещению в failures-партицию.
func (d *Document) MarkForFailure() { d.Disposition = DispositionFailure }

// MarkForPublish помечает документ к перемещению в published-партицию.
func (d *Document) MarkForPublish() { d.Disposition = DispositionPublished }

// MarkForHistory помечает документ к архивации в collection_history.
func (d *Document) MarkForHistory() { d.Disposition = DispositionHistory }

// MarkForDelete помечает документ к удалению.
func (d *Document) MarkForDelete() { d.Disposition = DispositionDelete }

// ResetDisposition возвращает документ к обычному re-save
// (используется при abort).
func (d *Document) ResetDisposition() { d.Disposition = DispositionPending }

// InheritProvenance копирует цепочку происхождения родительского
// документа в дочерний (выходы split/divide).
func (d *Document) InheritProvenance(parent *Document) {
	d.CollectionTaskIDs = append([]string(nil), parent.CollectionTaskIDs...)
	d.ArchiveFiles = append([]string(nil), parent.ArchiveFiles...)
}

func newErrorDetail(err error) ErrorDetail {
	detail := ErrorDetail{Timestamp: time.Now().UTC()}
	if err != nil {
		detail.Message = err.Error()
		detail.Class = fmt.Sprintf("%T", err)
	}
	return detail
}
