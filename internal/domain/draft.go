package domain

import "time"

// ActionDocument — изменяемый draft-вид документа, который получает
// действие. Действие мутирует draft; Agent применяет его обратно через
// UpdateFromDraft с проверкой легальности изменений идентичности.
type ActionDocument struct {
	// DocumentID — может менять только publish-действие.
	DocumentID string

	// Type — может менять только publish-действие.
	Type string

	// State — состояние на момент снятия draft. Меняется самим Agent'ом,
	// не действием.
	State DocState

	// Content, Raw, Metadata — произвольно мутируемая полезная нагрузка.
	Content  map[string]any
	Raw      []byte
	Metadata map[string]any

	// Title, Copyright — отображаемые метаданные.
	Title     string
	Copyright string

	// DocumentTimestamp — смысловая метка содержимого.
	DocumentTimestamp *time.Time

	// Version — явный bump версии при publish. Ноль означает
	// "перенести вперёд и инкрементировать".
	Version int
}

// ToActionDocument снимает draft-вид для передачи действию.
// Карты копируются, чтобы отказ от draft'а не оставлял следов
// на документе.
func (d *Document) ToActionDocument() *ActionDocument {
	return &ActionDocument{
		DocumentID:        d.DocumentID,
		Type:              d.Type,
		State:             d.State,
		Content:           copyMap(d.Content),
		Raw:               append([]byte(nil), d.Raw...),
		Metadata:          copyMap(d.Metadata),
		Title:             d.Title,
		Copyright:         d.Copyright,
		DocumentTimestamp: d.DocumentTimestamp,
		Version:           d.Version,
	}
}

// UpdateFromDraft применяет draft обратно к документу.
//
// Если allowIDChange == false, изменение DocumentID или Type отклоняется
// целиком: документ остаётся нетронутым, возвращается ErrIDChange /
// ErrTypeChange. Только publish-действие проходит с allowIDChange == true.
func (d *Document) UpdateFromDraft(draft *ActionDocument, allowIDChange bool) error {
	if !allowIDChange {
		if draft.DocumentID != d.DocumentID {
			return ErrIDChange
		}
		if draft.Type != d.Type {
			return ErrTypeChange
		}
	}
	d.DocumentID = draft.DocumentID
	d.Type = draft.Type
	d.Content = draft.Content
	d.Raw = draft.Raw
	d.Metadata = draft.Metadata
	d.Title = draft.Title
	d.Copyright = draft.Copyright
	d.DocumentTimestamp = draft.DocumentTimestamp
	return nil
}

// PublishedView — read-вид опубликованного документа для consume-действий.
// Все поля, кроме Metadata, иммутабельны с точки зрения действия.
type PublishedView struct {
	DocumentID        string
	Type              string
	Content           map[string]any
	Raw               []byte
	Title             string
	Copyright         string
	Version           int
	DocumentTimestamp *time.Time
	PublishedAt       *time.Time

	// Metadata — единственное мутируемое поле.
	Metadata map[string]any
}

// ToPublishedView снимает consume-вид документа. Content и Raw копируются,
// Metadata передаётся по ссылке: это единственное поле, мутации которого
// применяются обратно.
func (d *Document) ToPublishedView() *PublishedView {
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	return &PublishedView{
		DocumentID:        d.DocumentID,
		Type:              d.Type,
		Content:           copyMap(d.Content),
		Raw:               append([]byte(nil), d.Raw...),
		Title:             d.Title,
		Copyright:         d.Copyright,
		Version:           d.Version,
		DocumentTimestamp: d.DocumentTimestamp,
		PublishedAt:       d.PublishedAt,
		Metadata:          d.Metadata,
	}
}

// copyMap делает поверхностную копию карты. Вложенные значения
// разделяются — действия, мутирующие вложенные структуры отклонённого
// draft'а, делают это на свой риск.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
