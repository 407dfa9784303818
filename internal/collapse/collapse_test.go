package collapse

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/registry"
)

func block(t *testing.T, reg *registry.Memory, name string) registry.BlockRef {
	t.Helper()
	ref, ok := registry.ResolveBlock(reg, registry.MustParseIdentifier(name))
	require.True(t, ok, name)
	return ref
}

func tag(t *testing.T, reg *registry.Memory, name string) registry.TagRef {
	t.Helper()
	ref, ok := registry.ResolveTag(reg, registry.MustParseIdentifier(name))
	require.True(t, ok, name)
	return ref
}

func dim(name string) registry.DimensionRef {
	return registry.NewDimensionRef(registry.SplitIdentifier(name))
}

func TestValidator(t *testing.T) {
	v := NewValidator(registry.Vanilla())

	tests := []struct {
		name  string
		check func(string) bool
		input string
		want  bool
	}{
		{"known block", v.IsValidBlockIdentifier, "minecraft:stone", true},
		{"block without namespace", v.IsValidBlockIdentifier, "stone", true},
		{"unknown block", v.IsValidBlockIdentifier, "minecraft:not_a_block", false},
		{"empty block", v.IsValidBlockIdentifier, "", false},
		{"malformed block", v.IsValidBlockIdentifier, "Minecraft:Stone", false},
		{"tag is not a block", v.IsValidBlockIdentifier, "minecraft:logs", false},
		{"known tag", v.IsValidTagIdentifier, "minecraft:leaves", true},
		{"unknown tag", v.IsValidTagIdentifier, "minecraft:nope", false},
		{"block is not a tag", v.IsValidTagIdentifier, "minecraft:oak_log", false},
		{"dimension without colon", v.IsValidDimensionIdentifier, "foo", false},
		{"dimension with colon", v.IsValidDimensionIdentifier, "foo:bar", true},
		{"dimension unknown to registry", v.IsValidDimensionIdentifier, "mod:sky_islands", true},
		{"dimension with odd characters", v.IsValidDimensionIdentifier, "Bad Name:X", true},
		{"empty dimension", v.IsValidDimensionIdentifier, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.input))
		})
	}
}

func TestResolverKeepsOrderAndDropsFailures(t *testing.T) {
	reg := registry.Vanilla()
	r := NewResolver(reg)

	blocks := r.Blocks([]string{"minecraft:dirt", "minecraft:ghost", "stone", "minecraft:dirt"})
	require.Len(t, blocks, 3)
	assert.Equal(t, block(t, reg, "minecraft:dirt"), blocks[0])
	assert.Equal(t, block(t, reg, "minecraft:stone"), blocks[1])
	assert.Equal(t, blocks[0], blocks[2])

	tags := r.Tags([]string{"minecraft:logs", "BAD", "minecraft:leaves"})
	assert.Equal(t, []registry.TagRef{tag(t, reg, "minecraft:logs"), tag(t, reg, "minecraft:leaves")}, tags)

	dims := r.Dimensions([]string{"minecraft:the_end", "", "odd:Dim"})
	assert.Equal(t, []registry.DimensionRef{dim("minecraft:the_end"), dim("odd:Dim")}, dims)
}

func TestOrderedKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Ordered([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Ordered([]string(nil)))
}

func TestPairOverrides(t *testing.T) {
	t.Run("more values than refs", func(t *testing.T) {
		pairs := PairOverrides([]string{"a", "b"}, []int{7, 8, 9})
		assert.Equal(t, []Override[string]{{"a", 7}, {"b", 8}}, pairs)
	})

	t.Run("fewer values than refs", func(t *testing.T) {
		pairs := PairOverrides([]string{"a", "b", "c"}, []int{5})
		assert.Equal(t, []Override[string]{{"a", 5}, {"b", NoOverride}, {"c", NoOverride}}, pairs)
	})

	t.Run("no values", func(t *testing.T) {
		table := BuildOverrides(PairOverrides([]string{"a"}, nil))
		assert.Equal(t, map[string]int{"a": NoOverride}, table)
	})

	t.Run("duplicate ref consumes its value and keeps the last one", func(t *testing.T) {
		pairs := PairOverrides([]string{"a", "a", "b"}, []int{1, 2})
		assert.Equal(t, []Override[string]{{"a", 2}, {"b", NoOverride}}, pairs)
	})

	t.Run("duplicate ref does not shift the tail", func(t *testing.T) {
		pairs := PairOverrides([]string{"leaves", "leaves", "logs"}, []int{1, 2, 3})
		assert.Equal(t, []Override[string]{{"leaves", 2}, {"logs", 3}}, pairs)
	})

	t.Run("keys are exactly the refs", func(t *testing.T) {
		table := BuildOverrides(PairOverrides([]int{3, 1, 2}, []int{10, 20, 30, 40}))
		assert.Len(t, table, 3)
		assert.Equal(t, 10, table[3])
		assert.Equal(t, 30, table[2])
	})
}

func TestLoaderDefaults(t *testing.T) {
	reg := registry.Vanilla()
	l := NewLoader(reg)

	snap := l.Defaults()

	assert.Equal(t, 10, snap.SupportLengthMax())
	assert.Equal(t, 1, snap.SupportLengthMin())
	assert.Equal(t, 5000, snap.MaxFallingBlockEntity())
	assert.Equal(t, 0.5, snap.FallingBlockBreakFactor())
	assert.Equal(t, 1.0, snap.BlockBreakVolume())
	assert.False(t, snap.RemoveBlocksInsteadOfFall())

	assert.Len(t, snap.IndestructibleBlocks(), 7)
	assert.True(t, snap.IsIndestructible(block(t, reg, "minecraft:bedrock")))
	assert.False(t, snap.IsIndestructible(block(t, reg, "minecraft:stone")))

	assert.True(t, snap.IsDimensionAllowed(dim("minecraft:overworld")))
	assert.False(t, snap.IsDimensionAllowed(dim("minecraft:the_nether")))

	v, ok := snap.BlockOverride(block(t, reg, "minecraft:netherrack"))
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	v, ok = snap.TagOverride(tag(t, reg, "minecraft:leaves"))
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	_, ok = snap.BlockOverride(block(t, reg, "minecraft:stone"))
	assert.False(t, ok)
}

func TestLoaderScenario(t *testing.T) {
	reg := registry.Vanilla()
	l := NewLoader(reg)

	values, report := l.Spec().Load(map[string]any{
		KeyIndestructibleBlocks: []any{
			"minecraft:bedrock", "minecraft:not_a_block", "minecraft:command_block",
			"minecraft:barrier", "minecraft:structure_block", "minecraft:structure_void",
			"minecraft:reinforced_deepslate",
		},
		KeyOverwriteBlockTags:      []any{"minecraft:leaves"},
		KeyOverwriteBlockTagValues: []any{},
		KeyOverwriteBlocks:         []any{"minecraft:netherrack"},
		KeyOverwriteBlockValues:    []any{4},
	})
	snap := l.Build(values, "test")

	assert.Equal(t, []any{"minecraft:not_a_block"}, report.Rejected(KeyIndestructibleBlocks))
	assert.Len(t, snap.IndestructibleBlocks(), 6)
	assert.False(t, snap.IsIndestructible(block(t, reg, "minecraft:end_portal_frame")))

	v, ok := snap.BlockOverride(block(t, reg, "minecraft:netherrack"))
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	v, ok = snap.TagOverride(tag(t, reg, "minecraft:leaves"))
	assert.True(t, ok)
	assert.Equal(t, NoOverride, v)
}

func TestLoaderCorrectsScalars(t *testing.T) {
	l := NewLoader(registry.Vanilla())

	values, report := l.Spec().Load(map[string]any{
		KeySupportLengthMax:        0,
		KeyFallingBlockBreakFactor: 1.0,
		KeyDmgMax:                  "lots",
		KeySupportSearchIter:       0,
	})
	snap := l.Build(values, "test")

	assert.Equal(t, 10, snap.SupportLengthMax())
	assert.Equal(t, 1.0, snap.FallingBlockBreakFactor())
	assert.Equal(t, 10, snap.DmgMax())
	assert.Equal(t, 0, snap.SupportSearchIter())
	counts := report.CountByKind()
	assert.Equal(t, 1, counts[config.CorrectionOutOfRange])
	assert.Equal(t, 1, counts[config.CorrectionWrongType])
}

func TestOverrideKeysAreResolvedRefs(t *testing.T) {
	reg := registry.Vanilla()
	l := NewLoader(reg)

	values, _ := l.Spec().Load(map[string]any{
		KeyOverwriteBlocks:      []any{"minecraft:ghost", "minecraft:glass", "minecraft:glass", "minecraft:sand"},
		KeyOverwriteBlockValues: []any{1, 2, 3},
	})
	snap := l.Build(values, "test")

	pairs := snap.BlockOverrides()
	require.Len(t, pairs, 2)
	assert.Equal(t, Override[registry.BlockRef]{Ref: block(t, reg, "minecraft:glass"), Value: 2}, pairs[0])
	assert.Equal(t, Override[registry.BlockRef]{Ref: block(t, reg, "minecraft:sand"), Value: 3}, pairs[1])
}

func TestLoaderDuplicateTagKeepsPositionalValues(t *testing.T) {
	reg := registry.Vanilla()
	l := NewLoader(reg)

	values, _ := l.Spec().Load(map[string]any{
		KeyOverwriteBlockTags:      []any{"minecraft:leaves", "minecraft:leaves", "minecraft:logs"},
		KeyOverwriteBlockTagValues: []any{1, 2, 3},
	})
	snap := l.Build(values, "test")

	leaves, ok := snap.TagOverride(registry.NewTagRef(registry.MustParseIdentifier("minecraft:leaves")))
	require.True(t, ok)
	assert.Equal(t, 2, leaves)
	logs, ok := snap.TagOverride(registry.NewTagRef(registry.MustParseIdentifier("minecraft:logs")))
	require.True(t, ok)
	assert.Equal(t, 3, logs)
	assert.Len(t, snap.TagOverrides(), 2)
}

func TestDefaultsRoundTrip(t *testing.T) {
	l := NewLoader(registry.Vanilla())

	var buf bytes.Buffer
	require.NoError(t, l.Spec().WriteDefaults(&buf))

	raw := make(map[string]any)
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &raw))
	values, report := l.Spec().Load(raw)
	assert.True(t, report.Empty(), "%v", report.Corrections)
	assert.Empty(t, report.Defaulted)

	assert.True(t, l.Build(values, "file").Equal(l.Defaults()))
}

func TestLoadIsIdempotent(t *testing.T) {
	l := NewLoader(registry.Vanilla())
	src := config.MapSource{
		KeyAllowedDimensions: []any{"minecraft:overworld", "minecraft:the_end"},
		KeyOverwriteBlocks:   []any{"minecraft:obsidian"},
	}

	first, _, err := l.Load(context.Background(), src)
	require.NoError(t, err)
	second, _, err := l.Load(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, "memory", first.Source())
}

func TestUnknownDimensions(t *testing.T) {
	reg := registry.Vanilla()
	l := NewLoader(reg)

	values, report := l.Spec().Load(map[string]any{
		KeyAllowedDimensions: []any{"minecraft:overworld", "mod:sky", "nocolon"},
	})
	snap := l.Build(values, "test")

	assert.Equal(t, []any{"nocolon"}, report.Rejected(KeyAllowedDimensions))
	assert.True(t, snap.IsDimensionAllowed(dim("mod:sky")))
	assert.Equal(t, []registry.DimensionRef{dim("mod:sky")}, snap.UnknownDimensions(reg))
}

func TestSnapshotView(t *testing.T) {
	l := NewLoader(registry.Vanilla())
	view := l.Defaults().View()

	assert.Equal(t, "defaults", view.Source)
	assert.Equal(t, []string{"minecraft:overworld"}, view.AllowedDimensions)
	assert.Equal(t, []OverrideView{{Ref: "minecraft:netherrack", Value: 4}}, view.BlockOverrides)
	assert.Equal(t, []OverrideView{{Ref: "minecraft:leaves", Value: 4}}, view.TagOverrides)
	assert.Equal(t, "minecraft:bedrock", view.IndestructibleBlocks[0])
}

func TestSnapshotEqual(t *testing.T) {
	l := NewLoader(registry.Vanilla())
	a := l.Defaults()
	var missing *Snapshot

	assert.False(t, missing.Equal(a))
	assert.True(t, missing.Equal(nil))

	values, _ := l.Spec().Load(map[string]any{KeyDmgDist: 3})
	assert.False(t, a.Equal(l.Build(values, "x")))
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	assert.Nil(t, h.Current())

	l := NewLoader(registry.Vanilla())
	first := l.Defaults()
	assert.Nil(t, h.Store(first))
	assert.Same(t, first, h.Current())

	second := l.Defaults()
	assert.Same(t, first, h.Store(second))
	assert.Same(t, second, h.Current())
}

func TestShippedOptionsFileMatchesDefaults(t *testing.T) {
	loader := NewLoader(registry.Vanilla())
	snap, report, err := loader.Load(context.Background(), config.NewFileSource("../../configs/collapse.yaml"))
	require.NoError(t, err)
	assert.Empty(t, report.Corrections)
	assert.Empty(t, report.Defaulted)
	assert.True(t, loader.Defaults().Equal(snap))
}
