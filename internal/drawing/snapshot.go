package drawing

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot - полное сериализуемое состояние чертежа.
// Используется хранилищем для сохранения и загрузки.
type Snapshot struct {
	ModelSpace  ObjectID           `json:"model_space"`
	Layers      []Layer            `json:"layers"`
	Definitions []*BlockDefinition `json:"definitions"`
	Lines       []*Line            `json:"lines,omitempty"`
	Circles     []*Circle          `json:"circles,omitempty"`
	Polylines   []*Polyline        `json:"polylines,omitempty"`
	Instances   []*BlockInstance   `json:"instances,omitempty"`
	Isolated    []ObjectID         `json:"isolated,omitempty"`
}

// Snapshot снимает копию состояния чертежа
func (db *Database) Snapshot() *Snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s := &Snapshot{
		ModelSpace: db.modelSpace,
		Isolated:   append([]ObjectID(nil), db.isolated...),
	}
	for _, l := range db.layers {
		s.Layers = append(s.Layers, l)
	}
	sort.Slice(s.Layers, func(i, j int) bool { return s.Layers[i].Name < s.Layers[j].Name })

	for _, def := range db.definitions {
		s.Definitions = append(s.Definitions, def.Clone())
	}
	sort.Slice(s.Definitions, func(i, j int) bool { return s.Definitions[i].Name < s.Definitions[j].Name })

	// Порядок сущностей внутри контейнера хранится в определении, здесь сортируем по ID
	ids := make([]string, 0, len(db.entities))
	for id := range db.entities {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		switch e := cloneEntity(db.entities[ObjectID(id)]).(type) {
		case *Line:
			s.Lines = append(s.Lines, e)
		case *Circle:
			s.Circles = append(s.Circles, e)
		case *Polyline:
			s.Polylines = append(s.Polylines, e)
		case *BlockInstance:
			s.Instances = append(s.Instances, e)
		}
	}
	return s
}

// FromSnapshot восстанавливает чертеж и проверяет ссылочную целостность
func FromSnapshot(s *Snapshot) (*Database, error) {
	if s == nil {
		return nil, fmt.Errorf("пустой снимок")
	}

	db := &Database{
		modelSpace:  s.ModelSpace,
		definitions: make(map[ObjectID]*BlockDefinition),
		names:       make(map[string]ObjectID),
		entities:    make(map[ObjectID]Entity),
		layers:      make(map[string]Layer),
		isolated:    append([]ObjectID(nil), s.Isolated...),
	}

	for _, l := range s.Layers {
		db.layers[strings.ToUpper(l.Name)] = l
	}
	for _, def := range s.Definitions {
		db.definitions[def.ID] = def.Clone()
		db.names[strings.ToUpper(def.Name)] = def.ID
	}
	if _, ok := db.definitions[db.modelSpace]; !ok {
		return nil, fmt.Errorf("пространство модели %s: %w", db.modelSpace, ErrNotFound)
	}

	add := func(e Entity) error {
		if _, dup := db.entities[e.EntityID()]; dup {
			return fmt.Errorf("%s: %w", e.EntityID(), ErrDuplicateID)
		}
		db.entities[e.EntityID()] = cloneEntity(e)
		return nil
	}
	for _, e := range s.Lines {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Circles {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Polylines {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Instances {
		if _, ok := db.names[strings.ToUpper(e.BlockName)]; !ok {
			return nil, fmt.Errorf("вставка %s ссылается на %s: %w", e.ID, e.BlockName, ErrNotFound)
		}
		if err := add(e); err != nil {
			return nil, err
		}
	}

	for _, def := range db.definitions {
		for _, id := range def.Entities {
			ent, ok := db.entities[id]
			if !ok {
				return nil, fmt.Errorf("определение %s ссылается на %s: %w", def.Name, id, ErrNotFound)
			}
			if ent.OwnerID() != def.ID {
				return nil, fmt.Errorf("сущность %s: владелец %s не совпадает с %s", id, ent.OwnerID(), def.ID)
			}
		}
	}

	return db, nil
}
