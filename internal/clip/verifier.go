package clip

import (
	"fmt"
	"math"
	"strings"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
)

// DefaultTolerance - допуск сравнения положения, поворота и масштаба
const DefaultTolerance = 0.001

// Snapshot - внешний вид вставки до переноса
type Snapshot struct {
	TopLevel      drawing.ObjectID `json:"top_level"`
	Position      vec.Vec3         `json:"position"`
	Rotation      float64          `json:"rotation"`
	ScaleX        float64          `json:"scale_x"`
	ScaleY        float64          `json:"scale_y"`
	Color         drawing.Color    `json:"color"`
	Linetype      string           `json:"linetype"`
	LinetypeScale float64          `json:"linetype_scale"`
}

// FieldCheck - результат сравнения одного поля
type FieldCheck struct {
	Field    string `json:"field"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// VerificationReport - поле за полем
type VerificationReport struct {
	Checks []FieldCheck `json:"checks"`
}

// Passed истинно, если прошли все проверки
func (r VerificationReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Failed возвращает непрошедшие проверки
func (r VerificationReport) Failed() []FieldCheck {
	var out []FieldCheck
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Check возвращает проверку по имени поля
func (r VerificationReport) Check(field string) (FieldCheck, bool) {
	for _, c := range r.Checks {
		if c.Field == field {
			return c, true
		}
	}
	return FieldCheck{}, false
}

// Verifier сравнивает вставку после переноса с состоянием до него.
type Verifier struct {
	deps
	resolver  *Resolver
	tolerance float64
}

// Capture фиксирует внешний вид найденной вставки до переноса
func (v *Verifier) Capture(rec ClippedInstanceRecord) (Snapshot, error) {
	chain, _, err := v.chain(rec.Path)
	if err != nil {
		return Snapshot{}, err
	}

	dec := rec.WorldTransform.Decompose()
	linetype, scale := v.resolver.ResolveLinetype(chain)
	return Snapshot{
		TopLevel:      chain[0].Owner,
		Position:      rec.WorldTransform.Origin(),
		Rotation:      dec.Rotation,
		ScaleX:        dec.ScaleX,
		ScaleY:        dec.ScaleY,
		Color:         v.resolver.ResolveColor(chain),
		Linetype:      linetype,
		LinetypeScale: scale,
	}, nil
}

// Verify сравнивает снимок с вставкой после переноса. Не возвращает ошибок:
// каждое расхождение отражается в отчете.
func (v *Verifier) Verify(pre Snapshot, post *drawing.BlockInstance) VerificationReport {
	if post == nil {
		return VerificationReport{Checks: []FieldCheck{{Field: "instance", Expected: "вставка", Actual: "nil"}}}
	}

	tol := v.tolerance
	dec := post.Transform.Decompose()
	chain := []*drawing.BlockInstance{post}
	color := v.resolver.ResolveColor(chain)
	linetype, scale := v.resolver.ResolveLinetype(chain)
	pos := post.Transform.Origin()

	checks := []FieldCheck{
		{
			Field:    "position",
			Passed:   pos.DistanceTo(pre.Position) <= tol,
			Expected: formatPoint(pre.Position),
			Actual:   formatPoint(pos),
		},
		{
			Field:    "rotation",
			Passed:   geom.AngleDelta(dec.Rotation, pre.Rotation) <= tol,
			Expected: formatFloat(pre.Rotation),
			Actual:   formatFloat(dec.Rotation),
		},
		{
			Field:    "scale_x",
			Passed:   math.Abs(dec.ScaleX-pre.ScaleX) <= tol,
			Expected: formatFloat(pre.ScaleX),
			Actual:   formatFloat(dec.ScaleX),
		},
		{
			Field:    "scale_y",
			Passed:   math.Abs(dec.ScaleY-pre.ScaleY) <= tol,
			Expected: formatFloat(pre.ScaleY),
			Actual:   formatFloat(dec.ScaleY),
		},
		{
			Field:    "color",
			Passed:   color.Equal(pre.Color),
			Expected: pre.Color.String(),
			Actual:   color.String(),
		},
		{
			Field:    "linetype",
			Passed:   strings.EqualFold(linetype, pre.Linetype),
			Expected: pre.Linetype,
			Actual:   linetype,
		},
		{
			Field:    "linetype_scale",
			Passed:   math.Abs(scale-pre.LinetypeScale) <= tol,
			Expected: formatFloat(pre.LinetypeScale),
			Actual:   formatFloat(scale),
		},
		{
			Field:    "nest_level",
			Passed:   post.Owner == pre.TopLevel,
			Expected: string(pre.TopLevel),
			Actual:   string(post.Owner),
		},
	}

	report := VerificationReport{Checks: checks}
	if !report.Passed() {
		for _, c := range report.Failed() {
			v.log.Warn("Проверка %s вставки %s не пройдена: ожидалось %s, получено %s",
				c.Field, post.ID, c.Expected, c.Actual)
		}
	}
	return report
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.6g", f)
}

func formatPoint(p vec.Vec3) string {
	return fmt.Sprintf("(%.6g, %.6g, %.6g)", p.X, p.Y, p.Z)
}
