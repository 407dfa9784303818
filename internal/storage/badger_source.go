package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// ErrNotFound опция отсутствует в хранилище
var ErrNotFound = errors.New("option not found")

// ErrClosed хранилище закрыто
var ErrClosed = errors.New("storage closed")

// optionPrefix префикс ключей опций: option:<name>
const optionPrefix = "option:"

// BadgerSource хранит опции в BadgerDB, по ключу на опцию, значения в JSON.
// Реализует config.Source.
type BadgerSource struct {
	db      *badger.DB
	dir     string
	mutex   sync.RWMutex
	isReady bool
}

// OpenBadgerSource открывает (или создаёт) хранилище опций в каталоге dir.
// Пустой dir открывает хранилище в памяти.
func OpenBadgerSource(dir string) (*BadgerSource, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerSource{db: db, dir: dir, isReady: true}, nil
}

// Close закрывает хранилище
func (bs *BadgerSource) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}
	bs.isReady = false
	return bs.db.Close()
}

// Describe реализует config.Source
func (bs *BadgerSource) Describe() string {
	if bs.dir == "" {
		return "badger:memory"
	}
	return "badger:" + bs.dir
}

// Read реализует config.Source: все опции хранилища
func (bs *BadgerSource) Read(ctx context.Context) (map[string]any, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return nil, ErrClosed
	}

	raw := make(map[string]any)
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(optionPrefix), PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), optionPrefix)
			err := item.Value(func(val []byte) error {
				v, err := decodeValue(val)
				if err != nil {
					return fmt.Errorf("опция %s: %w", name, err)
				}
				raw[name] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return raw, nil
}

// Get возвращает сырое значение опции
func (bs *BadgerSource) Get(name string) (any, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return nil, ErrClosed
	}

	var value any
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(optionKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := decodeValue(val)
			value = v
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", name, err)
	}
	return value, nil
}

// Put сохраняет значение опции
func (bs *BadgerSource) Put(name string, value any) error {
	return bs.PutAll(map[string]any{name: value})
}

// PutAll сохраняет несколько опций одной транзакцией
func (bs *BadgerSource) PutAll(values map[string]any) error {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return ErrClosed
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	err := bs.db.Update(func(txn *badger.Txn) error {
		for _, name := range names {
			data, err := json.Marshal(values[name])
			if err != nil {
				return fmt.Errorf("ошибка сериализации %s: %w", name, err)
			}
			if err := txn.Set(optionKey(name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Delete удаляет опцию; при следующей загрузке она получит значение по умолчанию
func (bs *BadgerSource) Delete(name string) error {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return ErrClosed
	}

	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(optionKey(name))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", name, err)
	}
	return nil
}

// Import заменяет содержимое хранилища опциями из raw
// (например, прочитанными из YAML-файла).
func (bs *BadgerSource) Import(raw map[string]any) error {
	bs.mutex.RLock()
	if !bs.isReady {
		bs.mutex.RUnlock()
		return ErrClosed
	}
	err := bs.db.DropPrefix([]byte(optionPrefix))
	bs.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("ошибка очистки хранилища: %w", err)
	}
	return bs.PutAll(raw)
}

func optionKey(name string) []byte {
	return []byte(optionPrefix + name)
}

// decodeValue разбирает JSON, сохраняя целые числа точными
func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
