package agent

import "errors"

// Ошибки агента.
var (
	// ErrStalePublish — publish-кандидат старше опубликованной копии
	// по document_timestamp. Публикация отклоняется, опубликованная
	// копия не меняется.
	ErrStalePublish = errors.New("published copy is newer than publish candidate")

	// ErrTypeMismatch — реализация действия не удовлетворяет интерфейсу
	// своего объявленного типа (например, тип COLLECT без Collector).
	ErrTypeMismatch = errors.New("action implementation does not match declared type")
)
