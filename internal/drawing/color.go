package drawing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// SpecKind различает явное значение и ссылки ПОСЛОЮ/ПОБЛОКУ
type SpecKind uint8

const (
	Explicit SpecKind = iota
	ByLayer
	ByBlock
)

// String возвращает строковое представление
func (k SpecKind) String() string {
	switch k {
	case Explicit:
		return "explicit"
	case ByLayer:
		return "bylayer"
	case ByBlock:
		return "byblock"
	default:
		return "unknown"
	}
}

// Color - конкретный цвет: индекс ACI (1-255) либо true color "#rrggbb".
// Нулевое значение не является допустимым цветом.
type Color struct {
	Index int    `json:"index,omitempty"`
	RGB   string `json:"rgb,omitempty"`
}

// Стандартные цвета
var (
	ColorRed   = ACI(1)
	ColorGreen = ACI(3)
	ColorBlue  = ACI(5)
	ColorWhite = ACI(7)
)

// ACI создает цвет по индексу AutoCAD Color Index
func ACI(index int) Color {
	return Color{Index: index}
}

// TrueColor создает цвет по hex строке
func TrueColor(hex string) Color {
	return Color{RGB: strings.ToLower(hex)}
}

// IsZero сообщает, что цвет не задан
func (c Color) IsZero() bool {
	return c.Index == 0 && c.RGB == ""
}

// Valid проверяет корректность значения
func (c Color) Valid() bool {
	if c.RGB != "" {
		_, err := colorful.Hex(c.RGB)
		return err == nil
	}
	return c.Index >= 1 && c.Index <= 255
}

// Colorful возвращает RGB представление цвета
func (c Color) Colorful() colorful.Color {
	if c.RGB != "" {
		if col, err := colorful.Hex(c.RGB); err == nil {
			return col
		}
		return colorful.Color{}
	}
	return aciToRGB(c.Index)
}

// Hex возвращает "#rrggbb"
func (c Color) Hex() string {
	return c.Colorful().Hex()
}

// Equal сравнивает цвета по отображаемому RGB, так что ACI 1 равен "#ff0000"
func (c Color) Equal(other Color) bool {
	if c.IsZero() || other.IsZero() {
		return c.IsZero() && other.IsZero()
	}
	r1, g1, b1 := c.Colorful().RGB255()
	r2, g2, b2 := other.Colorful().RGB255()
	return r1 == r2 && g1 == g2 && b1 == b2
}

func (c Color) String() string {
	if c.RGB != "" {
		return c.RGB
	}
	if c.Index == 0 {
		return "<none>"
	}
	return fmt.Sprintf("ACI %d", c.Index)
}

var aciBase = map[int]string{
	1: "#ff0000", 2: "#ffff00", 3: "#00ff00", 4: "#00ffff",
	5: "#0000ff", 6: "#ff00ff", 7: "#ffffff", 8: "#808080", 9: "#c0c0c0",
}

var aciValues = [5]float64{1.0, 0.8, 0.6, 0.5, 0.3}

// aciToRGB приближает палитру ACI: 1-9 стандартные цвета,
// 10-249 - 24 оттенка по 10 градаций, 250-255 - оттенки серого.
func aciToRGB(index int) colorful.Color {
	if hex, ok := aciBase[index]; ok {
		col, _ := colorful.Hex(hex)
		return col
	}
	switch {
	case index >= 10 && index <= 249:
		hue := float64((index-10)/10) * 15
		shade := index % 10
		sat := 1.0
		if shade%2 == 1 {
			sat = 0.5
		}
		return colorful.Hsv(hue, sat, aciValues[shade/2])
	case index >= 250 && index <= 255:
		v := 0.2 + float64(index-250)*0.16
		return colorful.Color{R: v, G: v, B: v}
	default:
		return colorful.Color{}
	}
}

// ColorSpec - цвет вставки: явный, ПОСЛОЮ или ПОБЛОКУ
type ColorSpec struct {
	Kind  SpecKind `json:"kind"`
	Value Color    `json:"value,omitempty"`
}

// ColorByLayer возвращает ссылку ПОСЛОЮ
func ColorByLayer() ColorSpec { return ColorSpec{Kind: ByLayer} }

// ColorByBlock возвращает ссылку ПОБЛОКУ
func ColorByBlock() ColorSpec { return ColorSpec{Kind: ByBlock} }

// ExplicitColor возвращает явный цвет
func ExplicitColor(c Color) ColorSpec { return ColorSpec{Kind: Explicit, Value: c} }

func (s ColorSpec) String() string {
	if s.Kind == Explicit {
		return s.Value.String()
	}
	return s.Kind.String()
}

// ParseColorSpec разбирает "bylayer", "byblock", индекс ACI или "#rrggbb"
func ParseColorSpec(s string) (ColorSpec, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	switch {
	case v == "" || v == "bylayer":
		return ColorByLayer(), nil
	case v == "byblock":
		return ColorByBlock(), nil
	case strings.HasPrefix(v, "#"):
		c := TrueColor(v)
		if !c.Valid() {
			return ColorSpec{}, fmt.Errorf("некорректный цвет %q", s)
		}
		return ExplicitColor(c), nil
	}
	idx, err := strconv.Atoi(v)
	if err != nil || !ACI(idx).Valid() {
		return ColorSpec{}, fmt.Errorf("некорректный цвет %q", s)
	}
	return ExplicitColor(ACI(idx)), nil
}

// LinetypeContinuous - тип линий по умолчанию
const LinetypeContinuous = "Continuous"

// LinetypeSpec - тип линий вставки: явный, ПОСЛОЮ или ПОБЛОКУ
type LinetypeSpec struct {
	Kind SpecKind `json:"kind"`
	Name string   `json:"name,omitempty"`
}

// LinetypeByLayer возвращает ссылку ПОСЛОЮ
func LinetypeByLayer() LinetypeSpec { return LinetypeSpec{Kind: ByLayer} }

// LinetypeByBlock возвращает ссылку ПОБЛОКУ
func LinetypeByBlock() LinetypeSpec { return LinetypeSpec{Kind: ByBlock} }

// ExplicitLinetype возвращает явный тип линий
func ExplicitLinetype(name string) LinetypeSpec { return LinetypeSpec{Kind: Explicit, Name: name} }

func (s LinetypeSpec) String() string {
	if s.Kind == Explicit {
		return s.Name
	}
	return s.Kind.String()
}

// ParseLinetypeSpec разбирает "bylayer", "byblock" или имя типа линий
func ParseLinetypeSpec(s string) LinetypeSpec {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "", "bylayer":
		return LinetypeByLayer()
	case "byblock":
		return LinetypeByBlock()
	default:
		return ExplicitLinetype(v)
	}
}
