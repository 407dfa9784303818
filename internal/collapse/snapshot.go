package collapse

import (
	"time"

	"github.com/annel0/block-physics/internal/registry"
)

// Tuning скалярные параметры физики
type Tuning struct {
	BlockBreakVolume           float64 `json:"block_break_volume"`
	SupportLengthMax           int     `json:"support_length_max"`
	SupportLengthMin           int     `json:"support_length_min"`
	DmgDist                    int     `json:"dmg_dist"`
	DmgMax                     int     `json:"dmg_max"`
	MaxFallingBlockEntity      int     `json:"max_falling_block_entity"`
	SupportSearchIter          int     `json:"support_search_iter"`
	FallingBlockBreakFactor    float64 `json:"falling_block_break_factor"`
	FallingBlockItemDropChance float64 `json:"falling_block_item_drop_chance"`
	RemoveBlocksInsteadOfFall  bool    `json:"remove_blocks_instead_of_fall"`
}

// Snapshot неизменяемый результат одной загрузки конфигурации.
// После создания не модифицируется, поэтому безопасен для чтения из любых горутин.
type Snapshot struct {
	id       string
	source   string
	loadedAt time.Time
	tuning   Tuning

	indestructible      map[registry.BlockRef]struct{}
	indestructibleOrder []registry.BlockRef

	allowed      map[registry.DimensionRef]struct{}
	allowedOrder []registry.DimensionRef

	blockOverrides map[registry.BlockRef]int
	blockPairs     []Override[registry.BlockRef]

	tagOverrides map[registry.TagRef]int
	tagPairs     []Override[registry.TagRef]
}

// ID уникальный идентификатор снимка
func (s *Snapshot) ID() string { return s.id }

// Source описание источника, из которого загружен снимок
func (s *Snapshot) Source() string { return s.source }

// LoadedAt время загрузки
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Tuning все скалярные параметры одной структурой
func (s *Snapshot) Tuning() Tuning { return s.tuning }

// BlockBreakVolume громкость разрушения блока
func (s *Snapshot) BlockBreakVolume() float64 { return s.tuning.BlockBreakVolume }

// SupportLengthMax прочность опоры для самых твёрдых блоков
func (s *Snapshot) SupportLengthMax() int { return s.tuning.SupportLengthMax }

// SupportLengthMin прочность опоры для блоков с нулевой твёрдостью
func (s *Snapshot) SupportLengthMin() int { return s.tuning.SupportLengthMin }

// DmgDist урон падающего блока за каждый блок высоты
func (s *Snapshot) DmgDist() int { return s.tuning.DmgDist }

// DmgMax верхний предел урона падающего блока
func (s *Snapshot) DmgMax() int { return s.tuning.DmgMax }

// MaxFallingBlockEntity лимит одновременно падающих блоков, 0 отключает обрушение
func (s *Snapshot) MaxFallingBlockEntity() int { return s.tuning.MaxFallingBlockEntity }

// SupportSearchIter глубина поиска опор
func (s *Snapshot) SupportSearchIter() int { return s.tuning.SupportSearchIter }

// FallingBlockBreakFactor множитель шанса разбиться при приземлении
func (s *Snapshot) FallingBlockBreakFactor() float64 { return s.tuning.FallingBlockBreakFactor }

// FallingBlockItemDropChance шанс выпадения предмета из разрушенного блока
func (s *Snapshot) FallingBlockItemDropChance() float64 { return s.tuning.FallingBlockItemDropChance }

// RemoveBlocksInsteadOfFall удалять блоки вместо создания падающих сущностей
func (s *Snapshot) RemoveBlocksInsteadOfFall() bool { return s.tuning.RemoveBlocksInsteadOfFall }

// IsIndestructible true, если блок входит в множество неразрушимых
func (s *Snapshot) IsIndestructible(block registry.BlockRef) bool {
	_, ok := s.indestructible[block]
	return ok
}

// IsDimensionAllowed true, если физика включена в измерении
func (s *Snapshot) IsDimensionAllowed(dim registry.DimensionRef) bool {
	_, ok := s.allowed[dim]
	return ok
}

// BlockOverride возвращает переопределённую прочность опоры блока.
// Значение может быть NoOverride: блок указан, но своего значения не получил.
func (s *Snapshot) BlockOverride(block registry.BlockRef) (int, bool) {
	v, ok := s.blockOverrides[block]
	return v, ok
}

// TagOverride возвращает переопределённую прочность опоры тега
func (s *Snapshot) TagOverride(tag registry.TagRef) (int, bool) {
	v, ok := s.tagOverrides[tag]
	return v, ok
}

// IndestructibleBlocks блоки в порядке объявления
func (s *Snapshot) IndestructibleBlocks() []registry.BlockRef {
	return append([]registry.BlockRef(nil), s.indestructibleOrder...)
}

// AllowedDimensions измерения в порядке объявления
func (s *Snapshot) AllowedDimensions() []registry.DimensionRef {
	return append([]registry.DimensionRef(nil), s.allowedOrder...)
}

// BlockOverrides пары в порядке объявления
func (s *Snapshot) BlockOverrides() []Override[registry.BlockRef] {
	return append([]Override[registry.BlockRef](nil), s.blockPairs...)
}

// TagOverrides пары в порядке объявления
func (s *Snapshot) TagOverrides() []Override[registry.TagRef] {
	return append([]Override[registry.TagRef](nil), s.tagPairs...)
}

// UnknownDimensions разрешённые измерения, которых нет в реестре.
// На содержимое снимка не влияет, используется только для предупреждений.
func (s *Snapshot) UnknownDimensions(lookup registry.Lookup) []registry.DimensionRef {
	var unknown []registry.DimensionRef
	for _, dim := range s.allowedOrder {
		if !lookup.Exists(registry.KindDimension, dim.Identifier()) {
			unknown = append(unknown, dim)
		}
	}
	return unknown
}

// Entries общее количество записей во множествах и таблицах
func (s *Snapshot) Entries() int {
	return len(s.indestructible) + len(s.allowed) + len(s.blockOverrides) + len(s.tagOverrides)
}

// Equal сравнивает содержимое снимков без учёта ID, источника и времени загрузки
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.tuning == other.tuning &&
		equalSlices(s.indestructibleOrder, other.indestructibleOrder) &&
		equalSlices(s.allowedOrder, other.allowedOrder) &&
		equalSlices(s.blockPairs, other.blockPairs) &&
		equalSlices(s.tagPairs, other.tagPairs)
}

// OverrideView пара переопределения для JSON
type OverrideView struct {
	Ref   string `json:"ref"`
	Value int    `json:"value"`
}

// SnapshotView сериализуемое представление снимка
type SnapshotView struct {
	ID                   string         `json:"id"`
	Source               string         `json:"source"`
	LoadedAt             time.Time      `json:"loaded_at"`
	Tuning               Tuning         `json:"tuning"`
	IndestructibleBlocks []string       `json:"indestructible_blocks"`
	AllowedDimensions    []string       `json:"allowed_dimensions"`
	BlockOverrides       []OverrideView `json:"block_overrides"`
	TagOverrides         []OverrideView `json:"tag_overrides"`
}

// View строит представление снимка для API и CLI
func (s *Snapshot) View() SnapshotView {
	view := SnapshotView{
		ID:                   s.id,
		Source:               s.source,
		LoadedAt:             s.loadedAt,
		Tuning:               s.tuning,
		IndestructibleBlocks: make([]string, 0, len(s.indestructibleOrder)),
		AllowedDimensions:    make([]string, 0, len(s.allowedOrder)),
		BlockOverrides:       make([]OverrideView, 0, len(s.blockPairs)),
		TagOverrides:         make([]OverrideView, 0, len(s.tagPairs)),
	}
	for _, b := range s.indestructibleOrder {
		view.IndestructibleBlocks = append(view.IndestructibleBlocks, b.String())
	}
	for _, d := range s.allowedOrder {
		view.AllowedDimensions = append(view.AllowedDimensions, d.String())
	}
	for _, p := range s.blockPairs {
		view.BlockOverrides = append(view.BlockOverrides, OverrideView{Ref: p.Ref.String(), Value: p.Value})
	}
	for _, p := range s.tagPairs {
		// Ключ тега без '#', чтобы совпадать с записью в файле
		view.TagOverrides = append(view.TagOverrides, OverrideView{Ref: p.Ref.Identifier().String(), Value: p.Value})
	}
	return view
}

func toSet[K comparable](keys []K) map[K]struct{} {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func equalSlices[K comparable](a, b []K) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
