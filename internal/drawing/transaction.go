package drawing

import "fmt"

// memTransaction накапливает журнал отмены; Abort проигрывает его в обратном порядке.
type memTransaction struct {
	db   *Database
	undo []func()
	done bool
}

func (tx *memTransaction) instanceLocked(id ObjectID) (*BlockInstance, error) {
	ent, ok := tx.db.entities[id]
	if !ok {
		return nil, fmt.Errorf("сущность %s: %w", id, ErrNotFound)
	}
	inst, ok := ent.(*BlockInstance)
	if !ok {
		return nil, fmt.Errorf("сущность %s: %w", id, ErrNotInstance)
	}
	return inst, nil
}

// AddInstance добавляет вставку в контейнер
func (tx *memTransaction) AddInstance(container ObjectID, inst *BlockInstance) (ObjectID, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return "", ErrTransactionClosed
	}

	id, err := tx.db.addInstanceLocked(container, inst.Clone())
	if err != nil {
		return "", err
	}
	tx.undo = append(tx.undo, func() { tx.db.removeEntityLocked(id) })
	return id, nil
}

// SetClip записывает нативную область подрезки
func (tx *memTransaction) SetClip(id ObjectID, region *ClipRegion) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}

	inst, err := tx.instanceLocked(id)
	if err != nil {
		return err
	}
	if inst.Array && region != nil {
		return ErrNativeClipUnsupported
	}

	prev := inst.Clip
	inst.Clip = region.Clone()
	tx.undo = append(tx.undo, func() { inst.Clip = prev })
	return nil
}

// SetExtension записывает значение словаря расширений
func (tx *memTransaction) SetExtension(id ObjectID, dict, entry, value string) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}

	inst, err := tx.instanceLocked(id)
	if err != nil {
		return err
	}

	prev, existed := inst.Extension.Get(dict, entry)
	if inst.Extension == nil {
		inst.Extension = make(ExtensionStore)
	}
	if inst.Extension[dict] == nil {
		inst.Extension[dict] = make(map[string]string)
	}
	inst.Extension[dict][entry] = value

	tx.undo = append(tx.undo, func() {
		if existed {
			inst.Extension[dict][entry] = prev
			return
		}
		delete(inst.Extension[dict], entry)
		if len(inst.Extension[dict]) == 0 {
			delete(inst.Extension, dict)
		}
	})
	return nil
}

// DeleteExtension удаляет запись словаря расширений
func (tx *memTransaction) DeleteExtension(id ObjectID, dict, entry string) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}

	inst, err := tx.instanceLocked(id)
	if err != nil {
		return err
	}

	prev, existed := inst.Extension.Get(dict, entry)
	if !existed {
		return nil
	}
	delete(inst.Extension[dict], entry)
	if len(inst.Extension[dict]) == 0 {
		delete(inst.Extension, dict)
	}

	tx.undo = append(tx.undo, func() {
		if inst.Extension == nil {
			inst.Extension = make(ExtensionStore)
		}
		if inst.Extension[dict] == nil {
			inst.Extension[dict] = make(map[string]string)
		}
		inst.Extension[dict][entry] = prev
	})
	return nil
}

// SetIsolation задает набор монопольно отображаемых объектов
func (tx *memTransaction) SetIsolation(ids []ObjectID) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}

	for _, id := range ids {
		if _, ok := tx.db.entities[id]; !ok {
			return fmt.Errorf("сущность %s: %w", id, ErrNotFound)
		}
	}

	prev := tx.db.isolated
	tx.db.isolated = append([]ObjectID(nil), ids...)
	tx.undo = append(tx.undo, func() { tx.db.isolated = prev })
	return nil
}

// Commit фиксирует изменения
func (tx *memTransaction) Commit() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}
	tx.done = true
	tx.undo = nil
	tx.db.active = nil
	return nil
}

// Abort откатывает все изменения транзакции
func (tx *memTransaction) Abort() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.done {
		return ErrTransactionClosed
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.done = true
	tx.undo = nil
	tx.db.active = nil
	return nil
}
