package drawing

import (
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
)

// ObjectID - идентификатор объекта чертежа (определения или сущности)
type ObjectID string

// ModelSpaceName - имя определения, играющего роль пространства модели
const ModelSpaceName = "*Model_Space"

// EntityKind определяет тип сущности
type EntityKind uint8

const (
	KindLine EntityKind = iota
	KindCircle
	KindPolyline
	KindInstance
)

// String возвращает строковое представление типа
func (k EntityKind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindCircle:
		return "circle"
	case KindPolyline:
		return "polyline"
	case KindInstance:
		return "insert"
	default:
		return "unknown"
	}
}

// Entity - общий интерфейс всех сущностей определения блока
type Entity interface {
	EntityID() ObjectID
	OwnerID() ObjectID
	Kind() EntityKind
}

// Primitive - сущность с собственной геометрией
type Primitive interface {
	Entity
	LocalExtents() geom.Extents
}

// BlockDefinition - именованный шаблон, упорядоченный набор сущностей
type BlockDefinition struct {
	ID            ObjectID   `json:"id"`
	Name          string     `json:"name"`
	EffectiveName string     `json:"effective_name,omitempty"` // Имя исходного динамического блока для анонимных копий (*U12)
	Entities      []ObjectID `json:"entities"`
}

// ResolvedName возвращает имя, которое видит пользователь
func (d *BlockDefinition) ResolvedName() string {
	if d.EffectiveName != "" {
		return d.EffectiveName
	}
	return d.Name
}

// Clone возвращает независимую копию
func (d *BlockDefinition) Clone() *BlockDefinition {
	c := *d
	c.Entities = append([]ObjectID(nil), d.Entities...)
	return &c
}

// ClipRegion - замкнутый многоугольник в локальных координатах вставки
type ClipRegion struct {
	Points   []vec.Vec2 `json:"points" yaml:"points"`
	Inverted bool       `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

// Clone возвращает независимую копию (nil остается nil)
func (r *ClipRegion) Clone() *ClipRegion {
	if r == nil {
		return nil
	}
	return &ClipRegion{Points: append([]vec.Vec2(nil), r.Points...), Inverted: r.Inverted}
}

// ExtensionStore - словарь расширений: словарь -> запись -> значение
type ExtensionStore map[string]map[string]string

// Get возвращает значение записи
func (s ExtensionStore) Get(dict, entry string) (string, bool) {
	d, ok := s[dict]
	if !ok {
		return "", false
	}
	v, ok := d[entry]
	return v, ok
}

// Clone возвращает глубокую копию
func (s ExtensionStore) Clone() ExtensionStore {
	if s == nil {
		return nil
	}
	out := make(ExtensionStore, len(s))
	for dict, entries := range s {
		cp := make(map[string]string, len(entries))
		for k, v := range entries {
			cp[k] = v
		}
		out[dict] = cp
	}
	return out
}

// BlockInstance - вставка определения блока с собственным преобразованием
type BlockInstance struct {
	ID            ObjectID       `json:"id"`
	Owner         ObjectID       `json:"owner"`
	BlockName     string         `json:"block_name"`
	Transform     geom.Matrix    `json:"transform"`
	Layer         string         `json:"layer"`
	Color         ColorSpec      `json:"color"`
	Linetype      LinetypeSpec   `json:"linetype"`
	LinetypeScale float64        `json:"linetype_scale"`
	Array         bool           `json:"array,omitempty"` // MINSERT: нативная подрезка не поддерживается
	Clip          *ClipRegion    `json:"clip,omitempty"`
	Extension     ExtensionStore `json:"extension,omitempty"`
}

func (b *BlockInstance) EntityID() ObjectID { return b.ID }
func (b *BlockInstance) OwnerID() ObjectID { return b.Owner }
func (b *BlockInstance) Kind() EntityKind { return KindInstance }

// Clone возвращает глубокую копию вставки
func (b *BlockInstance) Clone() *BlockInstance {
	c := *b
	c.Clip = b.Clip.Clone()
	c.Extension = b.Extension.Clone()
	return &c
}

// Line - отрезок
type Line struct {
	ID    ObjectID `json:"id"`
	Owner ObjectID `json:"owner"`
	Layer string   `json:"layer"`
	Start vec.Vec3 `json:"start"`
	End   vec.Vec3 `json:"end"`
}

func (l *Line) EntityID() ObjectID { return l.ID }
func (l *Line) OwnerID() ObjectID { return l.Owner }
func (l *Line) Kind() EntityKind { return KindLine }

// LocalExtents возвращает габарит в координатах владельца
func (l *Line) LocalExtents() geom.Extents { return geom.ExtentsOf(l.Start, l.End) }

// Circle - окружность в плоскости XY
type Circle struct {
	ID     ObjectID `json:"id"`
	Owner  ObjectID `json:"owner"`
	Layer  string   `json:"layer"`
	Center vec.Vec3 `json:"center"`
	Radius float64  `json:"radius"`
}

func (c *Circle) EntityID() ObjectID { return c.ID }
func (c *Circle) OwnerID() ObjectID { return c.Owner }
func (c *Circle) Kind() EntityKind { return KindCircle }

// LocalExtents возвращает габарит в координатах владельца
func (c *Circle) LocalExtents() geom.Extents {
	r := vec.Vec3{X: c.Radius, Y: c.Radius}
	return geom.ExtentsOf(c.Center.Sub(r), c.Center.Add(r))
}

// Polyline - ломаная
type Polyline struct {
	ID     ObjectID   `json:"id"`
	Owner  ObjectID   `json:"owner"`
	Layer  string     `json:"layer"`
	Points []vec.Vec3 `json:"points"`
	Closed bool       `json:"closed,omitempty"`
}

func (p *Polyline) EntityID() ObjectID { return p.ID }
func (p *Polyline) OwnerID() ObjectID { return p.Owner }
func (p *Polyline) Kind() EntityKind { return KindPolyline }

// LocalExtents возвращает габарит в координатах владельца; пустая ломаная дает пустой габарит
func (p *Polyline) LocalExtents() geom.Extents { return geom.ExtentsOf(p.Points...) }

// Layer - запись таблицы слоев
type Layer struct {
	Name     string `json:"name"`
	Color    Color  `json:"color"`
	Linetype string `json:"linetype"`
}
