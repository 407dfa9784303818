package collapse

import (
	"strings"

	"github.com/annel0/block-physics/internal/registry"
)

// Validator проверяет элементы списков опций.
// Проверки не возвращают ошибок: отказ выражается значением false.
type Validator struct {
	lookup registry.Lookup
}

// NewValidator создаёт валидатор поверх реестра
func NewValidator(lookup registry.Lookup) *Validator {
	return &Validator{lookup: lookup}
}

// IsValidBlockIdentifier true, если строка непуста и реестр знает такой блок
func (v *Validator) IsValidBlockIdentifier(s string) bool {
	return v.exists(registry.KindBlock, s)
}

// IsValidTagIdentifier true, если строка непуста и реестр знает такой тег
func (v *Validator) IsValidTagIdentifier(s string) bool {
	return v.exists(registry.KindTag, s)
}

// IsValidDimensionIdentifier проверяет только наличие разделителя ':'.
// Существование измерения в реестре не проверяется.
func (v *Validator) IsValidDimensionIdentifier(s string) bool {
	return strings.Contains(s, registry.Separator)
}

func (v *Validator) exists(kind registry.Kind, s string) bool {
	if s == "" {
		return false
	}
	id, err := registry.ParseIdentifier(s)
	if err != nil {
		return false
	}
	return v.lookup.Exists(kind, id)
}
