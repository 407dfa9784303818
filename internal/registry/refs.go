package registry

// Kind определяет вид записи реестра
type Kind uint8

const (
	KindBlock Kind = iota + 1
	KindTag
	KindDimension
)

// String возвращает строковое представление вида
func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindTag:
		return "tag"
	case KindDimension:
		return "dimension"
	default:
		return "unknown"
	}
}

// BlockID числовой идентификатор блока, выдаваемый реестром при регистрации.
// 0 зарезервирован за воздухом.
type BlockID uint16

// Ref общий интерфейс разрешённых ссылок.
type Ref interface {
	Kind() Kind
	Identifier() Identifier
}

// BlockRef непрозрачная ссылка на зарегистрированный блок.
// Сравнима через ==, пригодна как ключ map.
type BlockRef struct {
	id   BlockID
	name Identifier
}

func (r BlockRef) Kind() Kind             { return KindBlock }
func (r BlockRef) Identifier() Identifier { return r.name }
func (r BlockRef) ID() BlockID            { return r.id }
func (r BlockRef) String() string         { return r.name.String() }

// TagRef ссылка на тег блоков.
type TagRef struct {
	name Identifier
}

// NewTagRef создаёт ключ тега, не проверяя его существование.
func NewTagRef(id Identifier) TagRef { return TagRef{name: id} }

func (r TagRef) Kind() Kind             { return KindTag }
func (r TagRef) Identifier() Identifier { return r.name }
func (r TagRef) String() string         { return "#" + r.name.String() }

// DimensionRef ключ измерения (мира).
type DimensionRef struct {
	name Identifier
}

// NewDimensionRef создаёт ключ измерения из любого идентификатора.
func NewDimensionRef(id Identifier) DimensionRef { return DimensionRef{name: id} }

func (r DimensionRef) Kind() Kind             { return KindDimension }
func (r DimensionRef) Identifier() Identifier { return r.name }
func (r DimensionRef) String() string         { return r.name.String() }
