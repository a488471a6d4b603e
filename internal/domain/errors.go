package domain

import "errors"

// Ошибки доменной модели документа.
var (
	// ErrInvalidStateTransition — попытка нелегального перехода состояния.
	ErrInvalidStateTransition = errors.New("invalid document state transition")

	// ErrIDChange — действие изменило document_id, не будучи publish-действием.
	ErrIDChange = errors.New("document_id may only be changed by a publish action")

	// ErrTypeChange — действие изменило type, не будучи publish-действием.
	ErrTypeChange = errors.New("document type may only be changed by a publish action")
)
