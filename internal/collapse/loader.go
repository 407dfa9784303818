package collapse

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/registry"
	"github.com/google/uuid"
)

// Loader собирает снимок из сырых значений источника.
// Сам по себе состояния между загрузками не держит.
type Loader struct {
	lookup    registry.Lookup
	validator *Validator
	resolver  *Resolver
	options   *Options
	now       func() time.Time
}

// NewLoader создаёт загрузчик поверх реестра
func NewLoader(lookup registry.Lookup) *Loader {
	v := NewValidator(lookup)
	return &Loader{
		lookup:    lookup,
		validator: v,
		resolver:  NewResolver(lookup),
		options:   DeclareOptions(v),
		now:       time.Now,
	}
}

// Options объявленные опции загрузчика
func (l *Loader) Options() *Options { return l.options }

// Spec схема опций
func (l *Loader) Spec() *config.Spec { return l.options.Spec }

// Lookup реестр загрузчика
func (l *Loader) Lookup() registry.Lookup { return l.lookup }

// Load читает источник, корректирует значения и строит снимок.
// Ошибка возвращается только при сбое чтения источника.
func (l *Loader) Load(ctx context.Context, src config.Source) (*Snapshot, config.Report, error) {
	raw, err := src.Read(ctx)
	if err != nil {
		return nil, config.Report{}, fmt.Errorf("load options from %s: %w", src.Describe(), err)
	}
	values, report := l.options.Spec.Load(raw)
	return l.Build(values, src.Describe()), report, nil
}

// Build строит снимок из уже скорректированных значений.
// Порядок: скаляры, множества, таблицы переопределений.
func (l *Loader) Build(values *config.Values, source string) *Snapshot {
	o := l.options
	s := &Snapshot{
		id:       uuid.NewString(),
		source:   source,
		loadedAt: l.now(),
	}

	s.tuning = Tuning{
		BlockBreakVolume:           o.BlockBreakVolume.Get(values),
		SupportLengthMax:           o.SupportLengthMax.Get(values),
		SupportLengthMin:           o.SupportLengthMin.Get(values),
		DmgDist:                    o.DmgDist.Get(values),
		DmgMax:                     o.DmgMax.Get(values),
		MaxFallingBlockEntity:      o.MaxFallingBlockEntity.Get(values),
		SupportSearchIter:          o.SupportSearchIter.Get(values),
		FallingBlockBreakFactor:    o.FallingBlockBreakFactor.Get(values),
		FallingBlockItemDropChance: o.FallingBlockItemDropChance.Get(values),
		RemoveBlocksInsteadOfFall:  o.RemoveBlocksInsteadOfFall.Get(values),
	}

	s.indestructibleOrder = Ordered(l.resolver.Blocks(o.IndestructibleBlocks.Get(values)))
	s.indestructible = toSet(s.indestructibleOrder)
	s.allowedOrder = Ordered(l.resolver.Dimensions(o.AllowedDimensions.Get(values)))
	s.allowed = toSet(s.allowedOrder)

	s.blockPairs = PairOverrides(l.resolver.Blocks(o.OverwriteBlocks.Get(values)), o.OverwriteBlockValues.Get(values))
	s.blockOverrides = BuildOverrides(s.blockPairs)
	s.tagPairs = PairOverrides(l.resolver.Tags(o.OverwriteBlockTags.Get(values)), o.OverwriteBlockTagValues.Get(values))
	s.tagOverrides = BuildOverrides(s.tagPairs)

	return s
}

// Defaults снимок из значений по умолчанию
func (l *Loader) Defaults() *Snapshot {
	values, _ := l.options.Spec.Load(nil)
	return l.Build(values, "defaults")
}
