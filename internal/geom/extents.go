package geom

import (
	"math"

	"github.com/annel0/blockclip/internal/vec"
)

// Extents - ограничивающий параллелепипед, выровненный по осям.
// Нулевое значение пусто.
type Extents struct {
	Min   vec.Vec3 `json:"min"`
	Max   vec.Vec3 `json:"max"`
	Valid bool     `json:"valid"`
}

// ExtentsOf строит габарит по набору точек
func ExtentsOf(points ...vec.Vec3) Extents {
	var e Extents
	for _, p := range points {
		e = e.AddPoint(p)
	}
	return e
}

// IsEmpty сообщает, что габарит не содержит ни одной точки
func (e Extents) IsEmpty() bool {
	return !e.Valid
}

// AddPoint расширяет габарит точкой
func (e Extents) AddPoint(p vec.Vec3) Extents {
	if !e.Valid {
		return Extents{Min: p, Max: p, Valid: true}
	}
	e.Min = vec.Vec3{X: math.Min(e.Min.X, p.X), Y: math.Min(e.Min.Y, p.Y), Z: math.Min(e.Min.Z, p.Z)}
	e.Max = vec.Vec3{X: math.Max(e.Max.X, p.X), Y: math.Max(e.Max.Y, p.Y), Z: math.Max(e.Max.Z, p.Z)}
	return e
}

// Union возвращает наименьший габарит, содержащий оба
func (e Extents) Union(other Extents) Extents {
	if !other.Valid {
		return e
	}
	if !e.Valid {
		return other
	}
	return e.AddPoint(other.Min).AddPoint(other.Max)
}

// Corners возвращает 8 вершин габарита
func (e Extents) Corners() []vec.Vec3 {
	if !e.Valid {
		return nil
	}
	lo, hi := e.Min, e.Max
	return []vec.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z},
	}
}

// Transform возвращает габарит образа по всем 8 вершинам
func (e Extents) Transform(m Matrix) Extents {
	var out Extents
	for _, c := range e.Corners() {
		out = out.AddPoint(m.Apply(c))
	}
	return out
}
