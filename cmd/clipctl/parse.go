package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/vec"
)

// parsePath разбирает путь "внешняя/.../целевая"
func parsePath(s string) ([]drawing.ObjectID, error) {
	var out []drawing.ObjectID
	for _, part := range strings.Split(s, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, drawing.ObjectID(part))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("путь к вставке не задан")
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("некорректное число %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// parseRect разбирает "x1,y1,x2,y2"
func parseRect(s string) ([]vec.Vec2, error) {
	f, err := parseFloats(s)
	if err != nil {
		return nil, err
	}
	if len(f) != 4 {
		return nil, fmt.Errorf("прямоугольник задается как x1,y1,x2,y2")
	}
	return []vec.Vec2{{X: f[0], Y: f[1]}, {X: f[2], Y: f[3]}}, nil
}

// parsePolygon разбирает "x,y;x,y;x,y"
func parsePolygon(s string) ([]vec.Vec2, error) {
	var out []vec.Vec2
	for _, pair := range strings.Split(s, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		f, err := parseFloats(pair)
		if err != nil {
			return nil, err
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("вершина задается как x,y: %q", pair)
		}
		out = append(out, vec.Vec2{X: f[0], Y: f[1]})
	}
	return out, nil
}
