package drawing

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/blockclip/internal/geom"
	"github.com/google/uuid"
)

// maxExtentsDepth ограничивает рекурсию при расчете габаритов вложенных вставок
const maxExtentsDepth = 64

// Database - эталонный чертежный движок в памяти.
// Реализует Engine; изменения после построения - только через транзакции.
type Database struct {
	mu          sync.RWMutex
	modelSpace  ObjectID
	definitions map[ObjectID]*BlockDefinition
	names       map[string]ObjectID // Ключ - имя определения в верхнем регистре
	entities    map[ObjectID]Entity
	layers      map[string]Layer // Ключ - имя слоя в верхнем регистре
	isolated    []ObjectID
	active      *memTransaction
}

// NewDatabase создает пустой чертеж с пространством модели и слоем "0"
func NewDatabase() *Database {
	db := &Database{
		definitions: make(map[ObjectID]*BlockDefinition),
		names:       make(map[string]ObjectID),
		entities:    make(map[ObjectID]Entity),
		layers:      make(map[string]Layer),
	}

	ms := &BlockDefinition{ID: newID(), Name: ModelSpaceName}
	db.definitions[ms.ID] = ms
	db.names[strings.ToUpper(ms.Name)] = ms.ID
	db.modelSpace = ms.ID

	db.layers["0"] = Layer{Name: "0", Color: ColorWhite, Linetype: LinetypeContinuous}
	return db
}

func newID() ObjectID {
	return ObjectID(uuid.NewString())
}

// ModelSpace возвращает идентификатор пространства модели
func (db *Database) ModelSpace() ObjectID {
	return db.modelSpace
}

// AddLayer добавляет или заменяет слой
func (db *Database) AddLayer(l Layer) error {
	if l.Name == "" {
		return fmt.Errorf("имя слоя не задано")
	}
	if l.Color.IsZero() {
		l.Color = ColorWhite
	}
	if !l.Color.Valid() {
		return fmt.Errorf("некорректный цвет слоя %s: %v", l.Name, l.Color)
	}
	if l.Linetype == "" {
		l.Linetype = LinetypeContinuous
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.layers[strings.ToUpper(l.Name)] = l
	return nil
}

// AddDefinition создает пустое определение блока
func (db *Database) AddDefinition(name, effectiveName string) (ObjectID, error) {
	if name == "" {
		return "", fmt.Errorf("имя определения не задано")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	key := strings.ToUpper(name)
	if _, exists := db.names[key]; exists {
		return "", fmt.Errorf("определение %s уже существует", name)
	}

	def := &BlockDefinition{ID: newID(), Name: name, EffectiveName: effectiveName}
	db.definitions[def.ID] = def
	db.names[key] = def.ID
	return def.ID, nil
}

// AddLine добавляет отрезок в контейнер
func (db *Database) AddLine(container ObjectID, l Line) (ObjectID, error) {
	return db.addPrimitive(container, &l)
}

// AddCircle добавляет окружность в контейнер
func (db *Database) AddCircle(container ObjectID, c Circle) (ObjectID, error) {
	return db.addPrimitive(container, &c)
}

// AddPolyline добавляет ломаную в контейнер
func (db *Database) AddPolyline(container ObjectID, p Polyline) (ObjectID, error) {
	return db.addPrimitive(container, &p)
}

// AddInstance добавляет вставку блока в контейнер вне транзакции (построение чертежа)
func (db *Database) AddInstance(container ObjectID, inst BlockInstance) (ObjectID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.addInstanceLocked(container, &inst)
}

func (db *Database) addPrimitive(container ObjectID, ent Entity) (ObjectID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	def, ok := db.definitions[container]
	if !ok {
		return "", fmt.Errorf("контейнер %s: %w", container, ErrNotFound)
	}

	id := newID()
	switch e := ent.(type) {
	case *Line:
		e.ID, e.Owner = id, container
		e.Layer = layerOrDefault(e.Layer)
	case *Circle:
		e.ID, e.Owner = id, container
		e.Layer = layerOrDefault(e.Layer)
	case *Polyline:
		e.ID, e.Owner = id, container
		e.Layer = layerOrDefault(e.Layer)
	default:
		return "", fmt.Errorf("неподдерживаемый тип сущности %T", ent)
	}

	db.entities[id] = ent
	def.Entities = append(def.Entities, id)
	return id, nil
}

func (db *Database) addInstanceLocked(container ObjectID, inst *BlockInstance) (ObjectID, error) {
	def, ok := db.definitions[container]
	if !ok {
		return "", fmt.Errorf("контейнер %s: %w", container, ErrNotFound)
	}
	if _, ok := db.names[strings.ToUpper(inst.BlockName)]; !ok {
		return "", fmt.Errorf("определение %s: %w", inst.BlockName, ErrNotFound)
	}
	if inst.ID == "" {
		inst.ID = newID()
	} else if _, exists := db.entities[inst.ID]; exists {
		return "", fmt.Errorf("%s: %w", inst.ID, ErrDuplicateID)
	}

	inst.Owner = container
	inst.Layer = layerOrDefault(inst.Layer)
	if inst.LinetypeScale == 0 {
		inst.LinetypeScale = 1
	}
	if inst.Transform == (geom.Matrix{}) {
		inst.Transform = geom.Identity()
	}

	db.entities[inst.ID] = inst
	def.Entities = append(def.Entities, inst.ID)
	return inst.ID, nil
}

func (db *Database) removeEntityLocked(id ObjectID) {
	ent, ok := db.entities[id]
	if !ok {
		return
	}
	delete(db.entities, id)

	if def, ok := db.definitions[ent.OwnerID()]; ok {
		for i, eid := range def.Entities {
			if eid == id {
				def.Entities = append(def.Entities[:i], def.Entities[i+1:]...)
				break
			}
		}
	}
}

func layerOrDefault(name string) string {
	if name == "" {
		return "0"
	}
	return name
}

// Entities возвращает идентификаторы сущностей контейнера
func (db *Database) Entities(container ObjectID) ([]ObjectID, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	def, ok := db.definitions[container]
	if !ok {
		return nil, fmt.Errorf("контейнер %s: %w", container, ErrNotFound)
	}
	return append([]ObjectID(nil), def.Entities...), nil
}

// Entity возвращает копию сущности
func (db *Database) Entity(id ObjectID) (Entity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ent, ok := db.entities[id]
	if !ok {
		return nil, fmt.Errorf("сущность %s: %w", id, ErrNotFound)
	}
	return cloneEntity(ent), nil
}

// Instance возвращает копию вставки
func (db *Database) Instance(id ObjectID) (*BlockInstance, error) {
	return InstanceOf(db, id)
}

func cloneEntity(ent Entity) Entity {
	switch e := ent.(type) {
	case *BlockInstance:
		return e.Clone()
	case *Line:
		c := *e
		return &c
	case *Circle:
		c := *e
		return &c
	case *Polyline:
		c := *e
		c.Points = append(c.Points[:0:0], e.Points...)
		return &c
	default:
		return ent
	}
}

// Definition возвращает копию определения по имени (без учета регистра)
func (db *Database) Definition(name string) (*BlockDefinition, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.names[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("определение %s: %w", name, ErrNotFound)
	}
	return db.definitions[id].Clone(), nil
}

// Definitions возвращает все определения, отсортированные по имени
func (db *Database) Definitions() []*BlockDefinition {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]*BlockDefinition, 0, len(db.definitions))
	for _, def := range db.definitions {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Layer возвращает слой по имени (без учета регистра)
func (db *Database) Layer(name string) (Layer, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	l, ok := db.layers[strings.ToUpper(name)]
	return l, ok
}

// Layers возвращает все слои, отсортированные по имени
func (db *Database) Layers() []Layer {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]Layer, 0, len(db.layers))
	for _, l := range db.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Isolated возвращает текущий набор монопольно отображаемых объектов
func (db *Database) Isolated() []ObjectID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]ObjectID(nil), db.isolated...)
}

// Extents возвращает габарит сущности в координатах ее контейнера
func (db *Database) Extents(id ObjectID) (geom.Extents, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.extentsLocked(id, 0)
}

func (db *Database) extentsLocked(id ObjectID, depth int) (geom.Extents, error) {
	if depth > maxExtentsDepth {
		return geom.Extents{}, ErrNestingTooDeep
	}

	ent, ok := db.entities[id]
	if !ok {
		return geom.Extents{}, fmt.Errorf("сущность %s: %w", id, ErrNotFound)
	}

	switch e := ent.(type) {
	case Primitive:
		return e.LocalExtents(), nil
	case *BlockInstance:
		defID, ok := db.names[strings.ToUpper(e.BlockName)]
		if !ok {
			return geom.Extents{}, fmt.Errorf("определение %s: %w", e.BlockName, ErrNotFound)
		}
		var local geom.Extents
		for _, child := range db.definitions[defID].Entities {
			ext, err := db.extentsLocked(child, depth+1)
			if err != nil {
				return geom.Extents{}, err
			}
			local = local.Union(ext)
		}
		return local.Transform(e.Transform), nil
	default:
		return geom.Extents{}, nil
	}
}

// Begin открывает транзакцию
func (db *Database) Begin() (Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.active != nil {
		return nil, ErrTransactionActive
	}
	db.active = &memTransaction{db: db}
	return db.active, nil
}
