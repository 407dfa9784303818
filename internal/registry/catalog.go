package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// Catalog описывает содержимое реестра в JSON (assets/registry.json).
type Catalog struct {
	Blocks     []CatalogBlock `json:"blocks"`
	Tags       []string       `json:"tags,omitempty"`
	Dimensions []string       `json:"dimensions"`
}

// CatalogBlock блок и его теги
type CatalogBlock struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

// LoadCatalogFile читает каталог из файла
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &catalog, nil
}

// Apply регистрирует все записи каталога в реестре.
// Неверный идентификатор прерывает загрузку: каталог поставляется вместе с сервером.
func (c *Catalog) Apply(m *Memory) error {
	for _, name := range c.Tags {
		id, err := ParseIdentifier(name)
		if err != nil {
			return fmt.Errorf("catalog tag: %w", err)
		}
		m.RegisterTag(id)
	}

	for _, b := range c.Blocks {
		id, err := ParseIdentifier(b.Name)
		if err != nil {
			return fmt.Errorf("catalog block: %w", err)
		}
		tags := make([]Identifier, 0, len(b.Tags))
		for _, name := range b.Tags {
			tag, err := ParseIdentifier(name)
			if err != nil {
				return fmt.Errorf("catalog block %s tag: %w", b.Name, err)
			}
			tags = append(tags, tag)
		}
		m.RegisterBlock(id, tags...)
	}

	for _, name := range c.Dimensions {
		id, err := ParseIdentifier(name)
		if err != nil {
			return fmt.Errorf("catalog dimension: %w", err)
		}
		m.RegisterDimension(id)
	}
	return nil
}

// LoadMemory создаёт реестр по каталогу из файла.
// Пустой путь даёт встроенный набор Vanilla().
func LoadMemory(path string) (*Memory, error) {
	if path == "" {
		return Vanilla(), nil
	}

	catalog, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}

	m := NewMemory()
	if err := catalog.Apply(m); err != nil {
		return nil, err
	}
	return m, nil
}

// VanillaCatalog встроенное подмножество ванильных блоков, тегов и измерений.
func VanillaCatalog() *Catalog {
	return &Catalog{
		Blocks: []CatalogBlock{
			{Name: "minecraft:stone", Tags: []string{"minecraft:base_stone_overworld", "minecraft:mineable/pickaxe"}},
			{Name: "minecraft:deepslate", Tags: []string{"minecraft:base_stone_overworld", "minecraft:mineable/pickaxe"}},
			{Name: "minecraft:dirt", Tags: []string{"minecraft:dirt", "minecraft:mineable/shovel"}},
			{Name: "minecraft:grass_block", Tags: []string{"minecraft:dirt", "minecraft:mineable/shovel"}},
			{Name: "minecraft:sand", Tags: []string{"minecraft:sand", "minecraft:mineable/shovel"}},
			{Name: "minecraft:gravel", Tags: []string{"minecraft:mineable/shovel"}},
			{Name: "minecraft:oak_log", Tags: []string{"minecraft:logs", "minecraft:mineable/axe"}},
			{Name: "minecraft:birch_log", Tags: []string{"minecraft:logs", "minecraft:mineable/axe"}},
			{Name: "minecraft:oak_leaves", Tags: []string{"minecraft:leaves", "minecraft:mineable/hoe"}},
			{Name: "minecraft:birch_leaves", Tags: []string{"minecraft:leaves", "minecraft:mineable/hoe"}},
			{Name: "minecraft:oak_planks", Tags: []string{"minecraft:planks", "minecraft:mineable/axe"}},
			{Name: "minecraft:cobblestone", Tags: []string{"minecraft:mineable/pickaxe"}},
			{Name: "minecraft:iron_block", Tags: []string{"minecraft:mineable/pickaxe"}},
			{Name: "minecraft:obsidian", Tags: []string{"minecraft:mineable/pickaxe"}},
			{Name: "minecraft:glass"},
			{Name: "minecraft:slime_block"},
			{Name: "minecraft:honey_block"},
			{Name: "minecraft:netherrack", Tags: []string{"minecraft:base_stone_nether", "minecraft:mineable/pickaxe"}},
			{Name: "minecraft:end_stone", Tags: []string{"minecraft:mineable/pickaxe"}},
			{Name: "minecraft:bedrock"},
			{Name: "minecraft:command_block"},
			{Name: "minecraft:barrier"},
			{Name: "minecraft:structure_block"},
			{Name: "minecraft:structure_void"},
			{Name: "minecraft:reinforced_deepslate"},
			{Name: "minecraft:end_portal_frame"},
		},
		Dimensions: []string{
			"minecraft:overworld",
			"minecraft:the_nether",
			"minecraft:the_end",
		},
	}
}

// Vanilla создаёт реестр со встроенным набором VanillaCatalog.
func Vanilla() *Memory {
	m := NewMemory()
	if err := VanillaCatalog().Apply(m); err != nil {
		panic(err)
	}
	return m
}
