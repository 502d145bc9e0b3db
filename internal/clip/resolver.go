package clip

import (
	"strings"

	"github.com/annel0/blockclip/internal/drawing"
)

// LayerSource - таблица слоев, нужная резолверу
type LayerSource interface {
	Layer(name string) (drawing.Layer, bool)
}

// Resolver сводит ПОСЛОЮ/ПОБЛОКУ к конкретным цвету и типу линий.
// Цепочка передается от внешней вставки к целевой; резолвер не хранит состояния.
type Resolver struct {
	layers          LayerSource
	defaultColor    drawing.Color
	defaultLinetype string
}

// NewResolver создает резолвер; нулевые значения по умолчанию - ACI 7 и Continuous
func NewResolver(layers LayerSource, defaultColor drawing.Color, defaultLinetype string) *Resolver {
	if !defaultColor.Valid() {
		defaultColor = drawing.ColorWhite
	}
	if defaultLinetype == "" {
		defaultLinetype = drawing.LinetypeContinuous
	}
	return &Resolver{layers: layers, defaultColor: defaultColor, defaultLinetype: defaultLinetype}
}

// ResolveColor возвращает конкретный цвет последней вставки цепочки
func (r *Resolver) ResolveColor(chain []*drawing.BlockInstance) drawing.Color {
	for i := len(chain) - 1; i >= 0; i-- {
		inst := chain[i]
		switch inst.Color.Kind {
		case drawing.Explicit:
			if inst.Color.Value.Valid() {
				return inst.Color.Value
			}
			return r.defaultColor
		case drawing.ByLayer:
			return r.layerColor(inst.Layer)
		}
	}
	return r.defaultColor
}

// ResolveLinetype возвращает имя типа линий и итоговый масштаб.
// Масштаб вставки умножается на масштаб предка, от которого унаследован тип линий.
func (r *Resolver) ResolveLinetype(chain []*drawing.BlockInstance) (string, float64) {
	if len(chain) == 0 {
		return r.defaultLinetype, 1
	}
	last := len(chain) - 1
	scale := scaleOrOne(chain[last].LinetypeScale)

	for i := last; i >= 0; i-- {
		inst := chain[i]
		var name string
		switch inst.Linetype.Kind {
		case drawing.Explicit:
			name = r.concreteLinetype(inst.Linetype.Name)
		case drawing.ByLayer:
			name = r.layerLinetype(inst.Layer)
		default:
			continue
		}
		if i != last {
			scale *= scaleOrOne(inst.LinetypeScale)
		}
		return name, scale
	}
	return r.defaultLinetype, scale
}

func (r *Resolver) layerColor(name string) drawing.Color {
	if l, ok := r.layers.Layer(name); ok && l.Color.Valid() {
		return l.Color
	}
	return r.defaultColor
}

func (r *Resolver) layerLinetype(name string) string {
	if l, ok := r.layers.Layer(name); ok {
		return r.concreteLinetype(l.Linetype)
	}
	return r.defaultLinetype
}

// concreteLinetype заменяет пустое имя и имена-ссылки на тип по умолчанию
func (r *Resolver) concreteLinetype(name string) string {
	switch strings.ToUpper(name) {
	case "", "BYLAYER", "BYBLOCK":
		return r.defaultLinetype
	}
	return name
}

func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}
