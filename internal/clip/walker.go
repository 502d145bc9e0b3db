package clip

import (
	"context"
	"strings"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxDepth - предел вложенности при обходе
const DefaultMaxDepth = 64

// ClippedInstanceRecord - найденная подрезанная вставка.
// Строится заново при каждом обходе и не кэшируется.
type ClippedInstanceRecord struct {
	InstanceID      drawing.ObjectID   `json:"instance_id"`
	BlockName       string             `json:"block_name"`
	DetectionMethod string             `json:"detection_method"`
	NestLevel       int                `json:"nest_level"`
	WorldPosition   vec.Vec3           `json:"world_position"`
	Path            []drawing.ObjectID `json:"path"` // от внешней вставки к целевой
	ContainerID     drawing.ObjectID   `json:"container_id"`
	Layer           string             `json:"layer"`
	WorldTransform  geom.Matrix        `json:"world_transform"`
}

// Walker обходит иерархию вставок в глубину, накапливая мировое преобразование.
type Walker struct {
	deps
	detector *Detector
	maxDepth int
}

// FindClippedInstances возвращает все подрезанные вставки, достижимые из top.
func (w *Walker) FindClippedInstances(ctx context.Context, top drawing.ObjectID) ([]ClippedInstanceRecord, error) {
	_, op := w.begin(ctx, "FindClippedInstances", attribute.String("container", string(top)))
	records, err := w.find(top, nil)
	op.end(err)
	return records, err
}

// FindClippedInstancesByLayer - тот же обход, но в результат попадают только
// вставки с собственным слоем layer (без учета регистра).
func (w *Walker) FindClippedInstancesByLayer(ctx context.Context, top drawing.ObjectID, layer string) ([]ClippedInstanceRecord, error) {
	_, op := w.begin(ctx, "FindClippedInstancesByLayer",
		attribute.String("container", string(top)),
		attribute.String("layer", layer),
	)
	records, err := w.find(top, func(inst *drawing.BlockInstance) bool {
		return strings.EqualFold(inst.Layer, layer)
	})
	op.end(err)
	return records, err
}

func (w *Walker) find(top drawing.ObjectID, filter func(*drawing.BlockInstance) bool) ([]ClippedInstanceRecord, error) {
	children, err := w.engine.Entities(top)
	if err != nil {
		return nil, newError(InvalidInput, err, "контейнер %s не прочитан", top)
	}

	records := []ClippedInstanceRecord{}
	if err := w.walk(top, children, geom.Identity(), 0, nil, filter, &records); err != nil {
		return nil, err
	}
	w.log.Debug("Обход %s: найдено %d подрезанных вставок", top, len(records))
	return records, nil
}

func (w *Walker) walk(
	container drawing.ObjectID,
	children []drawing.ObjectID,
	acc geom.Matrix,
	depth int,
	path []drawing.ObjectID,
	filter func(*drawing.BlockInstance) bool,
	out *[]ClippedInstanceRecord,
) error {
	for _, id := range children {
		ent, err := w.engine.Entity(id)
		if err != nil {
			w.log.Warn("Пропуск сущности %s: %v", id, err)
			continue
		}
		inst, ok := ent.(*drawing.BlockInstance)
		if !ok {
			continue
		}
		if depth > w.maxDepth {
			return newError(CycleSuspected, nil,
				"превышена глубина вложенности %d в %s: вероятна циклическая ссылка", w.maxDepth, container)
		}
		w.metrics.instanceVisited()

		world := acc.Multiply(inst.Transform)
		instPath := append(append([]drawing.ObjectID(nil), path...), inst.ID)

		def, defErr := w.engine.Definition(inst.BlockName)

		if clipped, method := w.detector.IsClipped(inst); clipped && (filter == nil || filter(inst)) {
			name := inst.BlockName
			if defErr == nil {
				name = def.ResolvedName()
			}
			*out = append(*out, ClippedInstanceRecord{
				InstanceID:      inst.ID,
				BlockName:       name,
				DetectionMethod: method,
				NestLevel:       depth,
				WorldPosition:   world.Origin(),
				Path:            instPath,
				ContainerID:     container,
				Layer:           inst.Layer,
				WorldTransform:  world,
			})
			w.metrics.clippedFound(method)
		}

		if defErr != nil {
			w.log.Warn("Пропуск вставки %s: определение %s недоступно: %v", inst.ID, inst.BlockName, defErr)
			continue
		}
		nested, err := w.engine.Entities(def.ID)
		if err != nil {
			w.log.Warn("Пропуск содержимого %s: %v", def.Name, err)
			continue
		}
		if err := w.walk(def.ID, nested, world, depth+1, instPath, filter, out); err != nil {
			return err
		}
	}
	return nil
}
