package collapse

import (
	"github.com/annel0/block-physics/internal/registry"
)

// Resolver превращает проверенные строки в ссылки реестра.
// Порядок входного списка сохраняется, дубликаты не удаляются;
// элементы, которые не удалось разрешить, молча отбрасываются.
type Resolver struct {
	lookup registry.Lookup
}

// NewResolver создаёт резолвер поверх реестра
func NewResolver(lookup registry.Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Blocks разрешает имена блоков
func (r *Resolver) Blocks(names []string) []registry.BlockRef {
	out := make([]registry.BlockRef, 0, len(names))
	for _, name := range names {
		id, err := registry.ParseIdentifier(name)
		if err != nil {
			continue
		}
		if ref, ok := registry.ResolveBlock(r.lookup, id); ok {
			out = append(out, ref)
		}
	}
	return out
}

// Tags разрешает имена тегов
func (r *Resolver) Tags(names []string) []registry.TagRef {
	out := make([]registry.TagRef, 0, len(names))
	for _, name := range names {
		id, err := registry.ParseIdentifier(name)
		if err != nil {
			continue
		}
		if ref, ok := registry.ResolveTag(r.lookup, id); ok {
			out = append(out, ref)
		}
	}
	return out
}

// Dimensions строит ключи измерений без обращения к реестру.
// Строка делится по первому ':' без проверки допустимых символов.
func (r *Resolver) Dimensions(names []string) []registry.DimensionRef {
	out := make([]registry.DimensionRef, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		out = append(out, registry.NewDimensionRef(registry.SplitIdentifier(name)))
	}
	return out
}
