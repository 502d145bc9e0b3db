package clip

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/blockclip/internal/drawing"
)

// Способы обнаружения подрезки
const (
	MethodNative    = "native"
	MethodExtension = "extension-metadata"
)

// Маркер подрезки в словаре расширений по умолчанию
const (
	DefaultClipDictionary = "ACAD_FILTER"
	DefaultClipEntry      = "SPATIAL"
)

// Detector определяет, несет ли вставка активную подрезку.
type Detector struct {
	dictionary string
	entry      string
}

// NewDetector создает детектор с заданным маркером (пустые значения - по умолчанию)
func NewDetector(dictionary, entry string) *Detector {
	if dictionary == "" {
		dictionary = DefaultClipDictionary
	}
	if entry == "" {
		entry = DefaultClipEntry
	}
	return &Detector{dictionary: dictionary, entry: entry}
}

// Marker возвращает словарь и запись маркера подрезки
func (d *Detector) Marker() (dictionary, entry string) {
	return d.dictionary, d.entry
}

// IsClipped проверяет нативную область, затем маркер в словаре расширений.
func (d *Detector) IsClipped(inst *drawing.BlockInstance) (bool, string) {
	if inst == nil {
		return false, ""
	}
	if inst.Clip != nil {
		return true, MethodNative
	}
	if _, ok := inst.Extension.Get(d.dictionary, d.entry); ok {
		return true, MethodExtension
	}
	return false, ""
}

// marker возвращает сырое значение маркера
func (d *Detector) marker(inst *drawing.BlockInstance) (string, bool) {
	return inst.Extension.Get(d.dictionary, d.entry)
}

// encodeRegion сериализует область для хранения в словаре расширений
func encodeRegion(region *drawing.ClipRegion) (string, error) {
	data, err := json.Marshal(region)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeRegion разбирает область, сохраненную в словаре расширений
func decodeRegion(raw string) (*drawing.ClipRegion, error) {
	var region drawing.ClipRegion
	if err := json.Unmarshal([]byte(raw), &region); err != nil {
		return nil, fmt.Errorf("маркер подрезки не разобран: %w", err)
	}
	if len(region.Points) < 3 {
		return nil, fmt.Errorf("маркер подрезки содержит %d точек", len(region.Points))
	}
	return &region, nil
}
