package geom

import "math"

// Decomposition - поворот вокруг нормали и масштабы по осям вставки.
// Используется только для сравнения, не сохраняется.
type Decomposition struct {
	Rotation float64 // радианы, [0, 2π)
	ScaleX   float64
	ScaleY   float64 // отрицательный при зеркальном отражении
}

// Decompose раскладывает матрицу по ее базисным векторам.
// Перекос не поддерживается: ScaleY берется как длина базиса Y.
func (m Matrix) Decompose() Decomposition {
	bx, by := m.BasisX(), m.BasisY()

	sx := math.Hypot(bx.X, bx.Y)
	sy := math.Hypot(by.X, by.Y)
	if bx.X*by.Y-bx.Y*by.X < 0 {
		sy = -sy
	}

	return Decomposition{
		Rotation: NormalizeAngle(math.Atan2(bx.Y, bx.X)),
		ScaleX:   sx,
		ScaleY:   sy,
	}
}

// NormalizeAngle приводит угол к диапазону [0, 2π)
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleDelta возвращает наименьшую разницу углов по модулю 2π
func AngleDelta(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
