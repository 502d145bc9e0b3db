package geom

import (
	"math"

	"github.com/annel0/blockclip/internal/vec"
)

// DefaultEpsilon - допуск совпадения точек в единицах чертежа
const DefaultEpsilon = 1e-6

// RectangleCorners разворачивает две противоположные вершины
// в 4 вершины прямоугольника, выровненного по осям (против часовой стрелки).
func RectangleCorners(a, b vec.Vec2) []vec.Vec2 {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return []vec.Vec2{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Dedupe удаляет точки, совпадающие (с допуском eps) с уже оставленными.
// Порядок оставшихся точек сохраняется.
func Dedupe(points []vec.Vec2, eps float64) []vec.Vec2 {
	out := make([]vec.Vec2, 0, len(points))
	for _, p := range points {
		dup := false
		for _, q := range out {
			if p.NearlyEqual(q, eps) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// SignedArea возвращает ориентированную площадь замкнутого многоугольника
// (положительная при обходе против часовой стрелки).
func SignedArea(points []vec.Vec2) float64 {
	if len(points) < 3 {
		return 0
	}
	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		sum += points[i].Cross(points[j])
	}
	return sum / 2
}
