package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	drawingPrefix = "drawing:"
	metaPrefix    = "meta:"
)

// ErrDrawingNotFound возвращается, если чертеж с таким именем не сохранен
var ErrDrawingNotFound = errors.New("чертеж не найден")

// DrawingInfo - сведения о сохраненном чертеже
type DrawingInfo struct {
	Name        string    `json:"name"`
	SavedAt     time.Time `json:"saved_at"`
	Instances   int       `json:"instances"`
	Definitions int       `json:"definitions"`
	RawSize     int       `json:"raw_size"`    // байт JSON до сжатия
	StoredSize  int       `json:"stored_size"` // байт после zstd
}

// DrawingStorage хранит снимки чертежей в BadgerDB (JSON, сжатый zstd)
type DrawingStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     *logging.Logger
}

// NewDrawingStorage открывает хранилище в каталоге dataPath
func NewDrawingStorage(dataPath string) (*DrawingStorage, error) {
	opts := badger.DefaultOptions(dataPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd decoder: %w", err)
	}

	return &DrawingStorage{
		db:      db,
		dbPath:  dataPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
		log:     logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище данных
func (ds *DrawingStorage) Close() error {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if !ds.isReady {
		return nil
	}

	ds.isReady = false
	ds.decoder.Close()
	ds.encoder.Close()
	return ds.db.Close()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("имя чертежа не задано")
	}
	return nil
}

// SaveDrawing сохраняет снимок чертежа под именем name (с заменой)
func (ds *DrawingStorage) SaveDrawing(name string, db *drawing.Database) (*DrawingInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	snapshot := db.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации чертежа: %w", err)
	}
	compressed := ds.encoder.EncodeAll(data, nil)

	info := &DrawingInfo{
		Name:        name,
		SavedAt:     time.Now().UTC(),
		Instances:   len(snapshot.Instances),
		Definitions: len(snapshot.Definitions),
		RawSize:     len(data),
		StoredSize:  len(compressed),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	// Снимок и метаданные пишутся в одной транзакции
	err = ds.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(drawingPrefix+name), compressed); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+name), meta)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	ds.log.Debug("Чертеж %s сохранен: %d -> %d байт", name, info.RawSize, info.StoredSize)
	return info, nil
}

// LoadDrawing восстанавливает чертеж из хранилища
func (ds *DrawingStorage) LoadDrawing(name string) (*drawing.Database, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var compressed []byte
	err := ds.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(drawingPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrDrawingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	data, err := ds.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки чертежа %s: %w", name, err)
	}

	var snapshot drawing.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("ошибка десериализации чертежа %s: %w", name, err)
	}

	db, err := drawing.FromSnapshot(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("чертеж %s поврежден: %w", name, err)
	}
	return db, nil
}

// ListDrawings возвращает сведения о всех чертежах, отсортированные по имени
func (ds *DrawingStorage) ListDrawings() ([]DrawingInfo, error) {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var out []DrawingInfo
	err := ds.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var info DrawingInfo
				if err := json.Unmarshal(val, &info); err != nil {
					ds.log.Warn("Пропуск метаданных %s: %v", item.Key(), err)
					return nil
				}
				out = append(out, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка чертежей: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteDrawing удаляет чертеж; отсутствие чертежа - ErrDrawingNotFound
func (ds *DrawingStorage) DeleteDrawing(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := ds.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(drawingPrefix + name)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(drawingPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", name, ErrDrawingNotFound)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}
