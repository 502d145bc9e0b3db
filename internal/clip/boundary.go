package clip

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
	"go.opentelemetry.io/otel/attribute"
)

// Mode - способ задания границы
type Mode int

const (
	// Rectangle - две противоположные вершины прямоугольника, выровненного по мировым осям
	Rectangle Mode = iota
	// Polygon - три и более вершины, контур замыкается автоматически
	Polygon
)

func (m Mode) String() string {
	switch m {
	case Rectangle:
		return "rectangle"
	case Polygon:
		return "polygon"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Builder строит и записывает границы подрезки.
type Builder struct {
	deps
	detector *Detector
	eps      float64
}

// BuildBoundary переводит мировые точки в локальные координаты целевой вставки пути
// (через обратное составное преобразование), проверяет контур и записывает его.
func (b *Builder) BuildBoundary(ctx context.Context, path []drawing.ObjectID, worldPoints []vec.Vec2, mode Mode) (*drawing.ClipRegion, error) {
	_, op := b.begin(ctx, "BuildBoundary",
		attribute.String("mode", mode.String()),
		attribute.Int("points", len(worldPoints)),
	)
	region, err := b.buildBoundary(path, worldPoints, mode)
	op.end(err)
	return region, err
}

func (b *Builder) buildBoundary(path []drawing.ObjectID, worldPoints []vec.Vec2, mode Mode) (*drawing.ClipRegion, error) {
	corners, err := b.expand(worldPoints, mode)
	if err != nil {
		return nil, err
	}

	chain, composed, err := b.chain(path)
	if err != nil {
		return nil, err
	}
	target := chain[len(chain)-1]

	inverse, ok := composed.Inverse()
	if !ok {
		return nil, newError(DegenerateBoundary, nil, "преобразование вставки %s вырождено", target.ID)
	}

	// Допуски заданы в единицах чертежа, поэтому контур проверяется до перевода
	// в локальные координаты, где масштаб вставки меняет площадь.
	region, err := b.validate(corners)
	if err != nil {
		return nil, err
	}
	for i, p := range region.Points {
		region.Points[i] = inverse.Apply(p.To3(0)).ToVec2()
	}

	var mechanism string
	err = b.inTransaction(func(tx drawing.Transaction) error {
		var werr error
		mechanism, werr = b.writeRegion(tx, target, region)
		return werr
	})
	if err != nil {
		return nil, err
	}

	b.metrics.boundaryWritten(mechanism)
	b.log.Info("Граница подрезки записана: вставка %s, %d вершин, механизм %s", target.ID, len(region.Points), mechanism)
	return region.Clone(), nil
}

// expand проверяет число точек и разворачивает прямоугольник в 4 вершины
func (b *Builder) expand(points []vec.Vec2, mode Mode) ([]vec.Vec2, error) {
	switch mode {
	case Rectangle:
		if len(points) != 2 {
			return nil, newError(InvalidInput, nil, "прямоугольник задается 2 точками, получено %d", len(points))
		}
		return geom.RectangleCorners(points[0], points[1]), nil
	case Polygon:
		if len(points) < 3 {
			return nil, newError(InvalidInput, nil, "многоугольник задается не менее чем 3 точками, получено %d", len(points))
		}
		out := append([]vec.Vec2(nil), points...)
		if out[0].NearlyEqual(out[len(out)-1], b.eps) {
			out = out[:len(out)-1]
		}
		return out, nil
	default:
		return nil, newError(InvalidInput, nil, "неизвестный режим границы %s", mode)
	}
}

// validate удаляет совпадающие точки и отклоняет контур без площади
func (b *Builder) validate(points []vec.Vec2) (*drawing.ClipRegion, error) {
	kept := geom.Dedupe(points, b.eps)
	if len(kept) < 3 {
		return nil, newError(DegenerateBoundary, nil, "после удаления совпадающих точек осталось %d вершин", len(kept))
	}
	if area := geom.SignedArea(kept); math.Abs(area) <= b.eps {
		return nil, newError(DegenerateBoundary, nil, "контур подрезки не имеет площади (%g)", area)
	}
	return &drawing.ClipRegion{Points: kept}, nil
}

// writeRegion записывает область в нативный слот, а если тип вставки его
// не поддерживает, то в словарь расширений. Возвращает механизм записи.
func (b *Builder) writeRegion(tx drawing.Transaction, inst *drawing.BlockInstance, region *drawing.ClipRegion) (string, error) {
	dict, entry := b.detector.Marker()

	err := tx.SetClip(inst.ID, region)
	if err == nil {
		if err := tx.DeleteExtension(inst.ID, dict, entry); err != nil {
			return "", err
		}
		return MethodNative, nil
	}
	if !errors.Is(err, drawing.ErrNativeClipUnsupported) {
		return "", err
	}

	b.log.Debug("Вставка %s не поддерживает нативную подрезку, запись в %s/%s", inst.ID, dict, entry)
	raw, err := encodeRegion(region)
	if err != nil {
		return "", err
	}
	if err := tx.SetExtension(inst.ID, dict, entry, raw); err != nil {
		return "", err
	}
	return MethodExtension, nil
}

// AutoBuildBoundary подрезает вставку по габариту содержимого ее определения.
// Уже подрезанная вставка не меняется: возвращается ее текущая область.
func (b *Builder) AutoBuildBoundary(ctx context.Context, path []drawing.ObjectID) (*drawing.ClipRegion, error) {
	_, op := b.begin(ctx, "AutoBuildBoundary", attribute.Int("depth", len(path)))
	region, err := b.autoBuildBoundary(path)
	op.end(err)
	return region, err
}

func (b *Builder) autoBuildBoundary(path []drawing.ObjectID) (*drawing.ClipRegion, error) {
	chain, composed, err := b.chain(path)
	if err != nil {
		return nil, err
	}
	target := chain[len(chain)-1]

	if clipped, _ := b.detector.IsClipped(target); clipped {
		region, _, err := b.regionOf(target)
		if err != nil {
			return nil, err
		}
		b.log.Debug("Вставка %s уже подрезана, граница не меняется", target.ID)
		return region, nil
	}

	def, err := b.engine.Definition(target.BlockName)
	if err != nil {
		return nil, newError(InvalidInput, err, "определение %s не найдено", target.BlockName)
	}
	ids, err := b.engine.Entities(def.ID)
	if err != nil {
		return nil, newError(InvalidInput, err, "содержимое %s не прочитано", def.Name)
	}
	if len(ids) == 0 {
		return nil, newError(NoGeometry, nil, "определение %s не содержит объектов", def.Name)
	}

	var box geom.Extents
	for _, id := range ids {
		ext, err := b.engine.Extents(id)
		if err != nil {
			b.log.Warn("Габарит %s не получен: %v", id, err)
			continue
		}
		box = box.Union(ext)
	}
	if box.IsEmpty() {
		return nil, newError(NoGeometry, nil, "объекты определения %s не имеют габаритов", def.Name)
	}

	lo, hi := box.Min, box.Max
	localCorners := []vec.Vec3{
		{X: lo.X, Y: lo.Y},
		{X: hi.X, Y: lo.Y},
		{X: hi.X, Y: hi.Y},
		{X: lo.X, Y: hi.Y},
	}
	world := make([]vec.Vec2, 0, len(localCorners))
	for _, c := range localCorners {
		world = append(world, composed.Apply(c).ToVec2())
	}

	if composed.IsAxisAligned(b.eps) {
		return b.buildBoundary(path, []vec.Vec2{world[0], world[2]}, Rectangle)
	}
	return b.buildBoundary(path, world, Polygon)
}

// ReadRegion возвращает область подрезки вставки и механизм ее хранения.
// Неподрезанная вставка дает (nil, "", nil).
func (b *Builder) ReadRegion(id drawing.ObjectID) (*drawing.ClipRegion, string, error) {
	inst, err := b.instance(id)
	if err != nil {
		return nil, "", err
	}
	return b.regionOf(inst)
}

func (b *Builder) regionOf(inst *drawing.BlockInstance) (*drawing.ClipRegion, string, error) {
	if inst.Clip != nil {
		return inst.Clip.Clone(), MethodNative, nil
	}
	raw, ok := b.detector.marker(inst)
	if !ok {
		return nil, "", nil
	}
	region, err := decodeRegion(raw)
	if err != nil {
		return nil, "", newError(InvalidInput, err, "область подрезки вставки %s не прочитана", inst.ID)
	}
	return region, MethodExtension, nil
}

// RemoveBoundary снимает подрезку обоими механизмами в одной транзакции.
func (b *Builder) RemoveBoundary(ctx context.Context, id drawing.ObjectID) error {
	_, op := b.begin(ctx, "RemoveBoundary", attribute.String("instance", string(id)))
	err := b.removeBoundary(id)
	op.end(err)
	return err
}

func (b *Builder) removeBoundary(id drawing.ObjectID) error {
	if _, err := b.instance(id); err != nil {
		return err
	}
	dict, entry := b.detector.Marker()
	err := b.inTransaction(func(tx drawing.Transaction) error {
		if err := tx.SetClip(id, nil); err != nil {
			return err
		}
		return tx.DeleteExtension(id, dict, entry)
	})
	if err != nil {
		return err
	}
	b.log.Info("Подрезка снята со вставки %s", id)
	return nil
}
