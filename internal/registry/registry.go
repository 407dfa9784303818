package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Lookup описывает реестр, который знает, какие блоки, теги и измерения существуют.
// Реализация должна быть безопасна для конкурентного чтения.
type Lookup interface {
	// Exists сообщает, есть ли запись вида kind с идентификатором id.
	Exists(kind Kind, id Identifier) bool

	// Resolve возвращает ссылку на запись. Для KindBlock это BlockRef,
	// для KindTag: TagRef, для KindDimension: DimensionRef.
	Resolve(kind Kind, id Identifier) (Ref, bool)
}

// ResolveBlock разрешает блок через произвольный Lookup
func ResolveBlock(l Lookup, id Identifier) (BlockRef, bool) {
	ref, ok := l.Resolve(KindBlock, id)
	if !ok {
		return BlockRef{}, false
	}
	block, ok := ref.(BlockRef)
	return block, ok
}

// ResolveTag разрешает тег через произвольный Lookup
func ResolveTag(l Lookup, id Identifier) (TagRef, bool) {
	ref, ok := l.Resolve(KindTag, id)
	if !ok {
		return TagRef{}, false
	}
	tag, ok := ref.(TagRef)
	return tag, ok
}

// Memory реализует Lookup в памяти.
// Заполняется при старте (Register*), затем используется только на чтение.
type Memory struct {
	mu         sync.RWMutex
	blocks     map[Identifier]BlockRef
	byID       map[BlockID]BlockRef
	blockTags  map[BlockID][]TagRef
	tags       map[Identifier]TagRef
	dimensions map[Identifier]DimensionRef
	nextID     BlockID
}

// NewMemory создаёт пустой реестр. Воздух регистрируется автоматически с ID 0.
func NewMemory() *Memory {
	m := &Memory{
		blocks:     make(map[Identifier]BlockRef),
		byID:       make(map[BlockID]BlockRef),
		blockTags:  make(map[BlockID][]TagRef),
		tags:       make(map[Identifier]TagRef),
		dimensions: make(map[Identifier]DimensionRef),
	}
	m.RegisterBlock(Identifier{Namespace: DefaultNamespace, Path: "air"})
	return m
}

// RegisterBlock добавляет блок в реестр вместе с его тегами и возвращает ссылку.
// Повторная регистрация возвращает уже выданную ссылку и дополняет теги.
func (m *Memory) RegisterBlock(id Identifier, tags ...Identifier) BlockRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, exists := m.blocks[id]
	if !exists {
		ref = BlockRef{id: m.nextID, name: id}
		m.blocks[id] = ref
		m.byID[ref.id] = ref
		m.nextID++
	}

	for _, tagID := range tags {
		tag := m.registerTagLocked(tagID)
		if !containsTag(m.blockTags[ref.id], tag) {
			m.blockTags[ref.id] = append(m.blockTags[ref.id], tag)
		}
	}
	return ref
}

// RegisterTag добавляет тег без привязанных блоков
func (m *Memory) RegisterTag(id Identifier) TagRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerTagLocked(id)
}

// RegisterDimension добавляет измерение
func (m *Memory) RegisterDimension(id Identifier) DimensionRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := NewDimensionRef(id)
	m.dimensions[id] = ref
	return ref
}

func (m *Memory) registerTagLocked(id Identifier) TagRef {
	if tag, ok := m.tags[id]; ok {
		return tag
	}
	tag := NewTagRef(id)
	m.tags[id] = tag
	return tag
}

// Exists реализует Lookup
func (m *Memory) Exists(kind Kind, id Identifier) bool {
	_, ok := m.Resolve(kind, id)
	return ok
}

// Resolve реализует Lookup
func (m *Memory) Resolve(kind Kind, id Identifier) (Ref, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch kind {
	case KindBlock:
		ref, ok := m.blocks[id]
		return ref, ok
	case KindTag:
		ref, ok := m.tags[id]
		return ref, ok
	case KindDimension:
		ref, ok := m.dimensions[id]
		return ref, ok
	default:
		return nil, false
	}
}

// Block возвращает блок по числовому ID
func (m *Memory) Block(id BlockID) (BlockRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.byID[id]
	return ref, ok
}

// TagsOf возвращает теги блока в порядке регистрации
func (m *Memory) TagsOf(block BlockRef) []TagRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TagRef(nil), m.blockTags[block.id]...)
}

// Stats сводка по содержимому реестра
type Stats struct {
	Blocks     int `json:"blocks"`
	Tags       int `json:"tags"`
	Dimensions int `json:"dimensions"`
}

// Stats возвращает количество записей каждого вида
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Blocks: len(m.blocks), Tags: len(m.tags), Dimensions: len(m.dimensions)}
}

// Names возвращает отсортированные идентификаторы записей вида kind
func (m *Memory) Names(kind Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	switch kind {
	case KindBlock:
		for id := range m.blocks {
			names = append(names, id.String())
		}
	case KindTag:
		for id := range m.tags {
			names = append(names, id.String())
		}
	case KindDimension:
		for id := range m.dimensions {
			names = append(names, id.String())
		}
	}
	sort.Strings(names)
	return names
}

// String краткое описание для логов
func (m *Memory) String() string {
	s := m.Stats()
	return fmt.Sprintf("registry(blocks=%d tags=%d dimensions=%d)", s.Blocks, s.Tags, s.Dimensions)
}

func containsTag(tags []TagRef, tag TagRef) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
