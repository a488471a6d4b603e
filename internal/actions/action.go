package actions

import (
	"context"
	"time"

	"github.com/armagh-dev/armag-sub002/internal/domain"
)

// Action — базовый интерфейс всех реализаций действий.
type Action interface {
	// Name возвращает имя действия из его определения.
	Name() string
}

// Output — новый документ, порождаемый collect/split/divide-действием.
// Тип, состояние, pending-действия и происхождение заполняет Agent;
// действие отвечает только за полезную нагрузку.
type Output struct {
	// DocumentID — опционально; пустой получает случайный id.
	DocumentID string

	Title     string
	Copyright string

	Content  map[string]any
	Raw      []byte
	Metadata map[string]any

	// DocumentTimestamp — смысловая метка содержимого.
	DocumentTimestamp *time.Time

	// ArchiveFiles — ссылки на заархивированные исходные артефакты
	// (заполняет collect-действие после archive_file).
	ArchiveFiles []string
}

// Emit — callback создания выходного документа.
type Emit func(ctx context.Context, out *Output) error

// Collector — collect-действие: порождает документы из внешнего источника.
// Вызывается по trigger-документу, вставленному Collection Trigger'ом.
// Если не создано ни одного документа, trigger удаляется; иначе
// архивируется в collection_history.
type Collector interface {
	Action
	Collect(ctx context.Context, trigger *domain.ActionDocument, emit Emit) error
}

// Splitter — split-действие: читает документ и порождает ноль и более
// новых (каждый наследует происхождение). Исходный документ после
// успешного выполнения всегда удаляется.
type Splitter interface {
	Action
	Split(ctx context.Context, doc *domain.ActionDocument, emit Emit) error
}

// Divider — divide-действие: контракт split, но выбирается Workflow
// Resolver'ом, когда потребителю ниже по графу нужен поток одиночных
// документов из агрегата.
type Divider interface {
	Action
	Divide(ctx context.Context, doc *domain.ActionDocument, emit Emit) error
}

// Publisher — publish-действие: вычисляет каллер-назначаемый document_id
// (или оставляет пустым для случайного) и готовит документ к публикации.
// Единственный тип действия, которому разрешено менять DocumentID.
type Publisher interface {
	Action
	Publish(ctx context.Context, doc *domain.ActionDocument) error
}

// Consumer — consume-действие: получает read-вид опубликованного
// документа и может мутировать только Metadata.
type Consumer interface {
	Action
	Consume(ctx context.Context, pub *domain.PublishedView) error
}

// Utility — административная задача вне графа docspec (чистка логов,
// сброс блокировок, сверка состояния workflow). Запись-триггер всегда
// удаляется после выполнения.
type Utility interface {
	Action
	Run(ctx context.Context) error
}

// workDirKey — ключ контекста для scratch-каталога действия.
type workDirKey struct{}

// WithWorkDir кладёт путь scratch-каталога действия в контекст.
func WithWorkDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workDirKey{}, dir)
}

// WorkDir возвращает scratch-каталог текущего выполнения действия.
// Каталог создаётся заново перед каждым выполнением и удаляется после;
// это изоляция ресурсов, не песочница безопасности.
func WorkDir(ctx context.Context) string {
	dir, _ := ctx.Value(workDirKey{}).(string)
	return dir
}
