package geom

import (
	"math"

	"github.com/annel0/blockclip/internal/vec"
)

// Matrix представляет аффинное преобразование 3D пространства.
// Хранится как 3x4 (последняя строка однородной матрицы всегда 0 0 0 1):
//
//	x' = M[0][0]*x + M[0][1]*y + M[0][2]*z + M[0][3]
//	y' = M[1][0]*x + M[1][1]*y + M[1][2]*z + M[1][3]
//	z' = M[2][0]*x + M[2][1]*y + M[2][2]*z + M[2][3]
//
// Столбцы линейной части - базисные векторы вставки в координатах контейнера.
type Matrix struct {
	M [3][4]float64 `json:"m"`
}

// Identity возвращает единичное преобразование
func Identity() Matrix {
	return Matrix{M: [3][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}}
}

// Translate создает матрицу переноса
func Translate(v vec.Vec3) Matrix {
	m := Identity()
	m.M[0][3] = v.X
	m.M[1][3] = v.Y
	m.M[2][3] = v.Z
	return m
}

// RotateZ создает матрицу поворота вокруг оси Z (угол в радианах)
func RotateZ(angle float64) Matrix {
	cos, sin := math.Cos(angle), math.Sin(angle)
	m := Identity()
	m.M[0][0], m.M[0][1] = cos, -sin
	m.M[1][0], m.M[1][1] = sin, cos
	return m
}

// Scale создает матрицу масштабирования
func Scale(sx, sy, sz float64) Matrix {
	m := Identity()
	m.M[0][0] = sx
	m.M[1][1] = sy
	m.M[2][2] = sz
	return m
}

// Placement строит матрицу вставки блока: сначала масштаб, затем поворот, затем перенос.
func Placement(position vec.Vec3, rotation float64, scale vec.Vec3) Matrix {
	return Translate(position).Multiply(RotateZ(rotation)).Multiply(Scale(scale.X, scale.Y, scale.Z))
}

// Multiply возвращает m · other, т.е. сначала применяется other, затем m.
func (m Matrix) Multiply(other Matrix) Matrix {
	var r Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			sum := m.M[i][0]*other.M[0][j] + m.M[i][1]*other.M[1][j] + m.M[i][2]*other.M[2][j]
			if j == 3 {
				sum += m.M[i][3]
			}
			r.M[i][j] = sum
		}
	}
	return r
}

// Apply преобразует точку
func (m Matrix) Apply(p vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: m.M[0][0]*p.X + m.M[0][1]*p.Y + m.M[0][2]*p.Z + m.M[0][3],
		Y: m.M[1][0]*p.X + m.M[1][1]*p.Y + m.M[1][2]*p.Z + m.M[1][3],
		Z: m.M[2][0]*p.X + m.M[2][1]*p.Y + m.M[2][2]*p.Z + m.M[2][3],
	}
}

// ApplyVector преобразует вектор без учета переноса
func (m Matrix) ApplyVector(v vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: m.M[0][0]*v.X + m.M[0][1]*v.Y + m.M[0][2]*v.Z,
		Y: m.M[1][0]*v.X + m.M[1][1]*v.Y + m.M[1][2]*v.Z,
		Z: m.M[2][0]*v.X + m.M[2][1]*v.Y + m.M[2][2]*v.Z,
	}
}

// Origin возвращает образ начала координат (точку вставки)
func (m Matrix) Origin() vec.Vec3 {
	return vec.Vec3{X: m.M[0][3], Y: m.M[1][3], Z: m.M[2][3]}
}

// BasisX возвращает образ единичного вектора X
func (m Matrix) BasisX() vec.Vec3 {
	return vec.Vec3{X: m.M[0][0], Y: m.M[1][0], Z: m.M[2][0]}
}

// BasisY возвращает образ единичного вектора Y
func (m Matrix) BasisY() vec.Vec3 {
	return vec.Vec3{X: m.M[0][1], Y: m.M[1][1], Z: m.M[2][1]}
}

// Determinant возвращает определитель линейной части
func (m Matrix) Determinant() float64 {
	a := m.M
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// Inverse возвращает обратное преобразование.
// Второе значение false, если линейная часть вырождена.
func (m Matrix) Inverse() (Matrix, bool) {
	det := m.Determinant()
	if math.Abs(det) < 1e-12 {
		return Identity(), false
	}
	a := m.M
	inv := 1.0 / det

	var r Matrix
	r.M[0][0] = (a[1][1]*a[2][2] - a[1][2]*a[2][1]) * inv
	r.M[0][1] = (a[0][2]*a[2][1] - a[0][1]*a[2][2]) * inv
	r.M[0][2] = (a[0][1]*a[1][2] - a[0][2]*a[1][1]) * inv
	r.M[1][0] = (a[1][2]*a[2][0] - a[1][0]*a[2][2]) * inv
	r.M[1][1] = (a[0][0]*a[2][2] - a[0][2]*a[2][0]) * inv
	r.M[1][2] = (a[0][2]*a[1][0] - a[0][0]*a[1][2]) * inv
	r.M[2][0] = (a[1][0]*a[2][1] - a[1][1]*a[2][0]) * inv
	r.M[2][1] = (a[0][1]*a[2][0] - a[0][0]*a[2][1]) * inv
	r.M[2][2] = (a[0][0]*a[1][1] - a[0][1]*a[1][0]) * inv

	// Перенос: -R⁻¹ · t
	t := r.ApplyVector(m.Origin())
	r.M[0][3], r.M[1][3], r.M[2][3] = -t.X, -t.Y, -t.Z
	return r, true
}

// IsAxisAligned сообщает, переводит ли преобразование оси XY в оси XY
// (повороты на кратные 90° и отражения, без перекоса).
func (m Matrix) IsAxisAligned(eps float64) bool {
	bx, by := m.BasisX(), m.BasisY()
	alongX := func(v vec.Vec3) bool { return math.Abs(v.Y) <= eps && math.Abs(v.X) > eps }
	alongY := func(v vec.Vec3) bool { return math.Abs(v.X) <= eps && math.Abs(v.Y) > eps }
	return (alongX(bx) && alongY(by)) || (alongY(bx) && alongX(by))
}

// NearlyEqual сравнивает матрицы поэлементно с допуском eps
func (m Matrix) NearlyEqual(other Matrix, eps float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(m.M[i][j]-other.M[i][j]) > eps {
				return false
			}
		}
	}
	return true
}
