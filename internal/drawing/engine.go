package drawing

import (
	"errors"

	"github.com/annel0/blockclip/internal/geom"
)

// Ошибки движка чертежа
var (
	ErrNotFound              = errors.New("объект не найден")
	ErrNotInstance           = errors.New("объект не является вставкой блока")
	ErrNativeClipUnsupported = errors.New("нативная подрезка не поддерживается для этого типа вставки")
	ErrTransactionActive     = errors.New("транзакция уже активна")
	ErrTransactionClosed     = errors.New("транзакция уже завершена")
	ErrDuplicateID           = errors.New("идентификатор уже занят")
	ErrNestingTooDeep        = errors.New("превышена глубина вложенности определений")
)

// Engine определяет то, что ядру подрезки нужно от чертежного движка.
// Чтение идет напрямую, любые изменения - только через Transaction.
type Engine interface {
	// ModelSpace возвращает идентификатор определения пространства модели.
	ModelSpace() ObjectID

	// Entities возвращает непосредственные сущности контейнера (определения) по порядку.
	Entities(container ObjectID) ([]ObjectID, error)

	// Entity возвращает копию сущности; вставки имеют тип *BlockInstance.
	Entity(id ObjectID) (Entity, error)

	// Definition возвращает определение блока по имени.
	Definition(name string) (*BlockDefinition, error)

	// Layer возвращает запись таблицы слоев.
	Layer(name string) (Layer, bool)

	// Extents возвращает габарит сущности в координатах ее контейнера.
	// Пустой габарит (Valid == false) - не ошибка.
	Extents(id ObjectID) (geom.Extents, error)

	// Begin открывает транзакцию. Одновременно активна только одна.
	Begin() (Transaction, error)
}

// Transaction - единица изменения чертежа: либо Commit целиком, либо Abort целиком.
type Transaction interface {
	// AddInstance добавляет вставку в контейнер и возвращает ее идентификатор.
	AddInstance(container ObjectID, inst *BlockInstance) (ObjectID, error)

	// SetClip записывает нативную область подрезки (nil снимает подрезку).
	// Возвращает ErrNativeClipUnsupported, если тип вставки ее не поддерживает.
	SetClip(id ObjectID, region *ClipRegion) error

	// SetExtension записывает значение в словарь расширений вставки.
	SetExtension(id ObjectID, dict, entry, value string) error

	// DeleteExtension удаляет запись словаря расширений (отсутствие - не ошибка).
	DeleteExtension(id ObjectID, dict, entry string) error

	// SetIsolation задает набор объектов для монопольного отображения (пустой - показать все).
	SetIsolation(ids []ObjectID) error

	Commit() error
	Abort() error
}

// InstanceOf читает сущность и проверяет, что это вставка
func InstanceOf(e Engine, id ObjectID) (*BlockInstance, error) {
	ent, err := e.Entity(id)
	if err != nil {
		return nil, err
	}
	inst, ok := ent.(*BlockInstance)
	if !ok {
		return nil, ErrNotInstance
	}
	return inst, nil
}
