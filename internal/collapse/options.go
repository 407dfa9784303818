package collapse

import (
	"math"

	"github.com/annel0/block-physics/internal/config"
)

// Ключи опций в файле и в хранилищах
const (
	KeyIndestructibleBlocks       = "indestructibleBlocks"
	KeyAllowedDimensions          = "allowedDimensions"
	KeyBlockBreakVolume           = "blockBreakVolume"
	KeySupportLengthMax           = "supportLengthMax"
	KeySupportLengthMin           = "supportLengthMin"
	KeyDmgDist                    = "dmgDist"
	KeyDmgMax                     = "dmgMax"
	KeyMaxFallingBlockEntity      = "maxFallingBlockEntity"
	KeySupportSearchIter          = "supportSearchIter"
	KeyFallingBlockBreakFactor    = "fallingBlockBreakFactor"
	KeyFallingBlockItemDropChance = "fallingBlockItemDropChance"
	KeyRemoveBlocksInsteadOfFall  = "removeBlocksInsteadOfFall"
	KeyOverwriteBlockTags         = "overwriteBlockTags"
	KeyOverwriteBlockTagValues    = "overwriteBlockTagValues"
	KeyOverwriteBlocks            = "overwriteBlocks"
	KeyOverwriteBlockValues       = "overwriteBlockValues"
)

// DefaultIndestructibleBlocks блоки, которые всегда служат опорой и никогда не падают
var DefaultIndestructibleBlocks = []string{
	"minecraft:bedrock",
	"minecraft:command_block",
	"minecraft:barrier",
	"minecraft:structure_block",
	"minecraft:structure_void",
	"minecraft:reinforced_deepslate",
	"minecraft:end_portal_frame",
}

// Options типизированные опции физики обрушения и собранный Spec
type Options struct {
	Spec *config.Spec

	IndestructibleBlocks       *config.Option[[]string]
	AllowedDimensions          *config.Option[[]string]
	BlockBreakVolume           *config.Option[float64]
	SupportLengthMax           *config.Option[int]
	SupportLengthMin           *config.Option[int]
	DmgDist                    *config.Option[int]
	DmgMax                     *config.Option[int]
	MaxFallingBlockEntity      *config.Option[int]
	SupportSearchIter          *config.Option[int]
	FallingBlockBreakFactor    *config.Option[float64]
	FallingBlockItemDropChance *config.Option[float64]
	RemoveBlocksInsteadOfFall  *config.Option[bool]
	OverwriteBlockTags         *config.Option[[]string]
	OverwriteBlockTagValues    *config.Option[[]int]
	OverwriteBlocks            *config.Option[[]string]
	OverwriteBlockValues       *config.Option[[]int]
}

// DeclareOptions объявляет все опции. Проверки элементов списков идут через v.
func DeclareOptions(v *Validator) *Options {
	s := config.NewSchema()
	o := &Options{}

	o.IndestructibleBlocks = s.DefineStringList(KeyIndestructibleBlocks,
		"A list of indestructible blocks that will always count as support and never fall themselves.",
		DefaultIndestructibleBlocks, v.IsValidBlockIdentifier)
	o.AllowedDimensions = s.DefineStringList(KeyAllowedDimensions,
		"A list of dimensions allowed to have physics behavior. The Nether, and especially the End, are not recommended as both can easily experience catastrophic structural failure.",
		[]string{"minecraft:overworld"}, v.IsValidDimensionIdentifier)
	o.BlockBreakVolume = s.DefineFloat(KeyBlockBreakVolume,
		"Block Break Volume (caused by mod).",
		1, 0, math.MaxFloat64)
	o.SupportLengthMax = s.DefineInt(KeySupportLengthMax,
		"Support Strength Max. This value will be used by anything with a default hardness equal to or greater than 7 (iron blocks, obsidian, etc...).",
		10, 1, math.MaxInt32)
	o.SupportLengthMin = s.DefineInt(KeySupportLengthMin,
		"Support Strength Min. This value will be used by anything with a default hardness equal to 0 (honey blocks, slime blocks, etc...).",
		1, 1, math.MaxInt32)
	o.DmgDist = s.DefineInt(KeyDmgDist,
		"Base block entity fall damage inflicted per block fallen.",
		1, 0, math.MaxInt32)
	o.DmgMax = s.DefineInt(KeyDmgMax,
		"Max block entity fall damage inflicted. Max is taken from support strength (i.e. falling obsidian hurts more than dirt), but is overwritten if greater than this value.",
		10, 0, math.MaxInt32)
	o.MaxFallingBlockEntity = s.DefineInt(KeyMaxFallingBlockEntity,
		"Max number of falling entities allowed to be generated by the mod at any one time. Blocks that should 'fall' will wait to avoid exceeding this number. Lower for better performance, raise for faster collapses, set to 0 to turn the mod off.",
		5000, 0, math.MaxInt32)
	o.SupportSearchIter = s.DefineInt(KeySupportSearchIter,
		"Max number of iterative supports to scan.",
		4, 0, math.MaxInt32)
	o.FallingBlockBreakFactor = s.DefineFloat(KeyFallingBlockBreakFactor,
		"A factor influencing the chance of a falling block to break on ground contact, rather than be placed or shift over, which is also influenced by speed. Increase this value to make contact breaks more frequent (1 will always break), and decrease to make them less frequent (0 will never break).",
		0.5, 0, 1)
	o.FallingBlockItemDropChance = s.DefineFloat(KeyFallingBlockItemDropChance,
		"Percent chance that a destroyed falling block will drop its item. 1 will always drop, 0 will never drop.",
		0, 0, 1)
	o.RemoveBlocksInsteadOfFall = s.DefineBool(KeyRemoveBlocksInsteadOfFall,
		"Causes collapsing blocks to be destroyed directly instead of generating a falling block entity. Dramatically improves performance. Uses fallingBlockItemDropChance to determine how often they should drop their item. Uses maxFallingBlockEntity to determine how many blocks to allow to break per tick.",
		false)
	o.OverwriteBlockTags = s.DefineStringList(KeyOverwriteBlockTags,
		"A list of vanilla blocktags to assign custom support strength values (rather than the hardness-based default). Listed blocktags without a matching support value at its index (below) will use default values.",
		[]string{"minecraft:leaves"}, v.IsValidTagIdentifier)
	o.OverwriteBlockTagValues = s.DefineIntList(KeyOverwriteBlockTagValues,
		"A list of support strength values to override native (hardness based) blocktag support strength, matched by index (order) to above list.",
		[]int{4}, nil)
	o.OverwriteBlocks = s.DefineStringList(KeyOverwriteBlocks,
		"As the blocktag list above, but with individual blocks. Specified blocks will overwrite both default and blocktag specified support values.",
		[]string{"minecraft:netherrack"}, v.IsValidBlockIdentifier)
	o.OverwriteBlockValues = s.DefineIntList(KeyOverwriteBlockValues,
		"A list of support strength values to override native (hardness based) individual block support strength, matched by index to above list.",
		[]int{4}, nil)

	o.Spec = s.MustBuild()
	return o
}
