package store

import (
	"errors"
	"fmt"
)

// Общие ошибки хранилища документов.
var (
	// ErrNotFound — документ не найден.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateDocument — нарушение уникальности (document_id, type, state).
	// Восстановимая ошибка: вызывающая сторона может повторить с другим id
	// или трактовать как настоящий конфликт.
	ErrDuplicateDocument = errors.New("document already exists")

	// ErrDocumentLocked — документ удерживается живой блокировкой
	// другого агента.
	ErrDocumentLocked = errors.New("document is locked")
)

// SizeError — превышение потолка размера полезной нагрузки.
// Не retryable: вызывающая сторона маршрутизирует в ops-ошибку документа.
type SizeError struct {
	// Field — поле, превысившее потолок: "content" или "raw".
	Field string

	// Size — фактический размер в байтах.
	Size int

	// Limit — потолок в байтах.
	Limit int
}

// Error реализует интерфейс error.
func (e *SizeError) Error() string {
	return fmt.Sprintf("document %s size %d exceeds limit %d", e.Field, e.Size, e.Limit)
}

// ConnectionError оборачивает низкоуровневую ошибку доступа к хранилищу.
// Retry выполняет внешний цикл вызывающей стороны через backoff,
// не сам адаптер.
type ConnectionError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func connErr(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}
