package drawing

import (
	"fmt"
	"math"

	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
	"gopkg.in/yaml.v3"
)

// Document - YAML описание чертежа для импорта и экспорта.
// Углы задаются в градусах, цвета - "bylayer", "byblock", индекс ACI или "#rrggbb".
type Document struct {
	Layers []LayerDoc  `yaml:"layers,omitempty"`
	Blocks []BlockDoc  `yaml:"blocks,omitempty"`
	Model  []EntityDoc `yaml:"model,omitempty"`
}

type LayerDoc struct {
	Name     string `yaml:"name"`
	Color    string `yaml:"color,omitempty"`
	Linetype string `yaml:"linetype,omitempty"`
}

type BlockDoc struct {
	Name          string      `yaml:"name"`
	EffectiveName string      `yaml:"effective_name,omitempty"`
	Entities      []EntityDoc `yaml:"entities,omitempty"`
}

// EntityDoc - ровно одно из полей должно быть заполнено
type EntityDoc struct {
	Line     *LineDoc     `yaml:"line,omitempty"`
	Circle   *CircleDoc   `yaml:"circle,omitempty"`
	Polyline *PolylineDoc `yaml:"polyline,omitempty"`
	Insert   *InsertDoc   `yaml:"insert,omitempty"`
}

type LineDoc struct {
	Layer string   `yaml:"layer,omitempty"`
	From  vec.Vec3 `yaml:"from"`
	To    vec.Vec3 `yaml:"to"`
}

type CircleDoc struct {
	Layer  string   `yaml:"layer,omitempty"`
	Center vec.Vec3 `yaml:"center"`
	Radius float64  `yaml:"radius"`
}

type PolylineDoc struct {
	Layer  string     `yaml:"layer,omitempty"`
	Points []vec.Vec3 `yaml:"points"`
	Closed bool       `yaml:"closed,omitempty"`
}

// InsertDoc - вставка блока. Transform задает матрицу 3×4 целиком и заменяет
// position/rotation/scale; экспорт пишет ее, только если матрица не
// раскладывается без потерь (перекос после переноса на верхний уровень).
type InsertDoc struct {
	ID            string         `yaml:"id,omitempty"`
	Block         string         `yaml:"block"`
	Position      vec.Vec3       `yaml:"position"`
	Rotation      float64        `yaml:"rotation,omitempty"`
	Scale         *vec.Vec3      `yaml:"scale,omitempty"`
	Transform     *[3][4]float64 `yaml:"transform,omitempty,flow"`
	Layer         string         `yaml:"layer,omitempty"`
	Color         string         `yaml:"color,omitempty"`
	Linetype      string         `yaml:"linetype,omitempty"`
	LinetypeScale float64        `yaml:"linetype_scale,omitempty"`
	Array         bool           `yaml:"array,omitempty"`
	Clip          *ClipRegion    `yaml:"clip,omitempty"`
	Extension     ExtensionStore `yaml:"extension,omitempty"`
}

// ParseDocument разбирает YAML документ
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ошибка разбора документа: %w", err)
	}
	return &doc, nil
}

// Marshal сериализует документ в YAML
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Build создает чертеж по документу. Определения создаются до наполнения,
// поэтому порядок блоков в документе не важен.
func (d *Document) Build() (*Database, error) {
	db := NewDatabase()

	for _, l := range d.Layers {
		layer := Layer{Name: l.Name, Linetype: l.Linetype}
		if l.Color != "" {
			spec, err := ParseColorSpec(l.Color)
			if err != nil || spec.Kind != Explicit {
				return nil, fmt.Errorf("слой %s: некорректный цвет %q", l.Name, l.Color)
			}
			layer.Color = spec.Value
		}
		if err := db.AddLayer(layer); err != nil {
			return nil, err
		}
	}

	defIDs := make(map[string]ObjectID, len(d.Blocks))
	for _, b := range d.Blocks {
		id, err := db.AddDefinition(b.Name, b.EffectiveName)
		if err != nil {
			return nil, err
		}
		defIDs[b.Name] = id
	}

	for _, b := range d.Blocks {
		for i, e := range b.Entities {
			if err := addEntityDoc(db, defIDs[b.Name], e); err != nil {
				return nil, fmt.Errorf("блок %s, сущность %d: %w", b.Name, i, err)
			}
		}
	}
	for i, e := range d.Model {
		if err := addEntityDoc(db, db.ModelSpace(), e); err != nil {
			return nil, fmt.Errorf("пространство модели, сущность %d: %w", i, err)
		}
	}
	return db, nil
}

func addEntityDoc(db *Database, container ObjectID, e EntityDoc) error {
	var err error
	switch {
	case e.Line != nil:
		_, err = db.AddLine(container, Line{Layer: e.Line.Layer, Start: e.Line.From, End: e.Line.To})
	case e.Circle != nil:
		_, err = db.AddCircle(container, Circle{Layer: e.Circle.Layer, Center: e.Circle.Center, Radius: e.Circle.Radius})
	case e.Polyline != nil:
		_, err = db.AddPolyline(container, Polyline{Layer: e.Polyline.Layer, Points: e.Polyline.Points, Closed: e.Polyline.Closed})
	case e.Insert != nil:
		var inst BlockInstance
		inst, err = e.Insert.instance()
		if err == nil {
			_, err = db.AddInstance(container, inst)
		}
	default:
		err = fmt.Errorf("пустое описание сущности")
	}
	return err
}

func (in *InsertDoc) instance() (BlockInstance, error) {
	color, err := ParseColorSpec(in.Color)
	if err != nil {
		return BlockInstance{}, err
	}

	scale := vec.Vec3{X: 1, Y: 1, Z: 1}
	if in.Scale != nil {
		scale = *in.Scale
		// В плоском чертеже z обычно опускают
		if scale.Z == 0 {
			scale.Z = 1
		}
	}
	transform := geom.Placement(in.Position, in.Rotation*math.Pi/180, scale)
	if in.Transform != nil {
		transform = geom.Matrix{M: *in.Transform}
	}

	return BlockInstance{
		ID:            ObjectID(in.ID),
		BlockName:     in.Block,
		Transform:     transform,
		Layer:         in.Layer,
		Color:         color,
		Linetype:      ParseLinetypeSpec(in.Linetype),
		LinetypeScale: in.LinetypeScale,
		Array:         in.Array,
		Clip:          in.Clip.Clone(),
		Extension:     in.Extension.Clone(),
	}, nil
}

// ExportDocument строит YAML документ по текущему состоянию чертежа
func ExportDocument(db *Database) *Document {
	snap := db.Snapshot()
	doc := &Document{}

	for _, l := range snap.Layers {
		doc.Layers = append(doc.Layers, LayerDoc{Name: l.Name, Color: colorDoc(l.Color), Linetype: l.Linetype})
	}

	entities := make(map[ObjectID]EntityDoc)
	for _, l := range snap.Lines {
		entities[l.ID] = EntityDoc{Line: &LineDoc{Layer: l.Layer, From: l.Start, To: l.End}}
	}
	for _, c := range snap.Circles {
		entities[c.ID] = EntityDoc{Circle: &CircleDoc{Layer: c.Layer, Center: c.Center, Radius: c.Radius}}
	}
	for _, p := range snap.Polylines {
		entities[p.ID] = EntityDoc{Polyline: &PolylineDoc{Layer: p.Layer, Points: p.Points, Closed: p.Closed}}
	}
	for _, inst := range snap.Instances {
		entities[inst.ID] = EntityDoc{Insert: insertDoc(inst)}
	}

	for _, def := range snap.Definitions {
		docs := make([]EntityDoc, 0, len(def.Entities))
		for _, id := range def.Entities {
			docs = append(docs, entities[id])
		}
		if def.ID == snap.ModelSpace {
			doc.Model = docs
			continue
		}
		doc.Blocks = append(doc.Blocks, BlockDoc{Name: def.Name, EffectiveName: def.EffectiveName, Entities: docs})
	}
	return doc
}

func insertDoc(inst *BlockInstance) *InsertDoc {
	d := inst.Transform.Decompose()
	out := &InsertDoc{
		ID:            string(inst.ID),
		Block:         inst.BlockName,
		Position:      inst.Transform.Origin(),
		Rotation:      d.Rotation * 180 / math.Pi,
		Scale:         &vec.Vec3{X: d.ScaleX, Y: d.ScaleY, Z: inst.Transform.M[2][2]},
		Layer:         inst.Layer,
		Color:         colorSpecDoc(inst.Color),
		Linetype:      inst.Linetype.String(),
		LinetypeScale: inst.LinetypeScale,
		Array:         inst.Array,
		Clip:          inst.Clip.Clone(),
		Extension:     inst.Extension.Clone(),
	}

	rebuilt := geom.Placement(out.Position, d.Rotation, *out.Scale)
	if !rebuilt.NearlyEqual(inst.Transform, geom.DefaultEpsilon) {
		m := inst.Transform.M
		out.Transform = &m
	}
	return out
}

func colorDoc(c Color) string {
	if c.RGB != "" {
		return c.RGB
	}
	return fmt.Sprintf("%d", c.Index)
}

func colorSpecDoc(s ColorSpec) string {
	if s.Kind == Explicit {
		return colorDoc(s.Value)
	}
	return s.Kind.String()
}
