// Пакет archive сохраняет исходные артефакты collect-действий.
//
// Артефакты архивируются до разбора: если документ позже уйдёт в
// failures, оператор всегда может вернуться к исходным данным.
// Ошибки доставки (ErrTransport) операционные и отличимы от ошибок
// кодирования метаданных.
package archive
