package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrDuplicateOption возвращается Build, если имя опции объявлено дважды.
var ErrDuplicateOption = errors.New("duplicate option")

// ErrInvalidDefault возвращается Build, если значение по умолчанию не проходит собственную проверку.
var ErrInvalidDefault = errors.New("invalid default")

// ErrUnknownOption возвращается при обращении к необъявленной опции.
var ErrUnknownOption = errors.New("unknown option")

// Kind тип значения опции
type Kind string

const (
	KindBool       Kind = "bool"
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindStringList Kind = "[]string"
	KindIntList    Kind = "[]int"
)

// Declaration нетипизированное описание опции, хранимое в Spec.
type Declaration interface {
	Name() string
	Comment() string
	Kind() Kind
	DefaultValue() any
	// RangeText описание допустимых значений для комментариев, "" если ограничений нет.
	RangeText() string

	correct(raw any) (any, []Correction)
}

// Option типизированная опция. Значение читается из Values через Get.
type Option[T any] struct {
	name      string
	comment   string
	kind      Kind
	def       T
	rangeText string
	clone     func(T) T
	coerce    func(name string, raw any) (T, []Correction)
}

// Name ключ опции в источнике
func (o *Option[T]) Name() string { return o.name }

// Comment описание опции для файла по умолчанию
func (o *Option[T]) Comment() string { return o.comment }

// Kind тип значения опции
func (o *Option[T]) Kind() Kind { return o.kind }

// Default копия значения по умолчанию
func (o *Option[T]) Default() T { return o.clone(o.def) }

// DefaultValue как Default, но без типа; нужно для Declaration
func (o *Option[T]) DefaultValue() any { return o.clone(o.def) }

// RangeText описание допустимого диапазона, "" если ограничений нет
func (o *Option[T]) RangeText() string { return o.rangeText }

// Get возвращает скорректированное значение опции.
// Если в Values значения нет, возвращается значение по умолчанию.
func (o *Option[T]) Get(v *Values) T {
	if v != nil {
		if raw, ok := v.values[o.name]; ok {
			if typed, ok := raw.(T); ok {
				return o.clone(typed)
			}
		}
	}
	return o.Default()
}

func (o *Option[T]) correct(raw any) (any, []Correction) {
	value, corrections := o.coerce(o.name, raw)
	return value, corrections
}

// Schema собирает объявления опций. Порядок объявления сохраняется,
// но на результат загрузки не влияет.
type Schema struct {
	decls []Declaration
	names map[string]int
	errs  []error
}

// NewSchema создаёт пустую схему
func NewSchema() *Schema {
	return &Schema{names: make(map[string]int)}
}

func (s *Schema) add(d Declaration) {
	if _, exists := s.names[d.Name()]; exists {
		s.errs = append(s.errs, fmt.Errorf("%w: %s", ErrDuplicateOption, d.Name()))
		return
	}
	s.names[d.Name()] = len(s.decls)
	s.decls = append(s.decls, d)

	// Скалярное значение по умолчанию обязано входить в границы.
	// Элементы списков зависят от внешних проверок и здесь не проверяются.
	if d.Kind() == KindStringList || d.Kind() == KindIntList {
		return
	}
	if _, corrections := d.correct(d.DefaultValue()); len(corrections) > 0 {
		s.errs = append(s.errs, fmt.Errorf("%w: %s: %s", ErrInvalidDefault, d.Name(), corrections[0].Message))
	}
}

// DefineBool объявляет логическую опцию
func (s *Schema) DefineBool(name, comment string, def bool) *Option[bool] {
	o := &Option[bool]{
		name:    name,
		comment: comment,
		kind:    KindBool,
		def:     def,
		clone:   identity[bool],
		coerce: func(name string, raw any) (bool, []Correction) {
			if b, ok := raw.(bool); ok {
				return b, nil
			}
			return def, []Correction{wrongType(name, raw, KindBool, def)}
		},
	}
	s.add(o)
	return o
}

// DefineInt объявляет целочисленную опцию с включительными границами [min, max]
func (s *Schema) DefineInt(name, comment string, def, min, max int) *Option[int] {
	o := &Option[int]{
		name:      name,
		comment:   comment,
		kind:      KindInt,
		def:       def,
		rangeText: fmt.Sprintf("%d ~ %d", min, max),
		clone:     identity[int],
		coerce: func(name string, raw any) (int, []Correction) {
			n, ok := toInt(raw)
			if !ok {
				return def, []Correction{wrongType(name, raw, KindInt, def)}
			}
			if n < min || n > max {
				return def, []Correction{outOfRange(name, raw, fmt.Sprintf("[%d, %d]", min, max), def)}
			}
			return n, nil
		},
	}
	s.add(o)
	return o
}

// DefineFloat объявляет опцию с плавающей точкой и включительными границами [min, max]
func (s *Schema) DefineFloat(name, comment string, def, min, max float64) *Option[float64] {
	o := &Option[float64]{
		name:      name,
		comment:   comment,
		kind:      KindFloat,
		def:       def,
		rangeText: fmt.Sprintf("%s ~ %s", formatFloat(min), formatFloat(max)),
		clone:     identity[float64],
		coerce: func(name string, raw any) (float64, []Correction) {
			f, ok := toFloat(raw)
			if !ok {
				return def, []Correction{wrongType(name, raw, KindFloat, def)}
			}
			if math.IsNaN(f) || f < min || f > max {
				return def, []Correction{outOfRange(name, raw, fmt.Sprintf("[%s, %s]", formatFloat(min), formatFloat(max)), def)}
			}
			return f, nil
		},
	}
	s.add(o)
	return o
}

// DefineStringList объявляет список строк. Каждый элемент проверяется accept;
// отклонённые элементы удаляются, остальные сохраняют исходный порядок.
// Пустой список допустим.
func (s *Schema) DefineStringList(name, comment string, def []string, accept func(string) bool) *Option[[]string] {
	o := &Option[[]string]{
		name:    name,
		comment: comment,
		kind:    KindStringList,
		def:     cloneSlice(def),
		clone:   cloneSlice[string],
		coerce: func(name string, raw any) ([]string, []Correction) {
			items, ok := toList(raw)
			if !ok {
				return cloneSlice(def), []Correction{wrongType(name, raw, KindStringList, def)}
			}
			out := make([]string, 0, len(items))
			var corrections []Correction
			for i, item := range items {
				str, ok := item.(string)
				if !ok || (accept != nil && !accept(str)) {
					corrections = append(corrections, rejectedEntry(name, i, item))
					continue
				}
				out = append(out, str)
			}
			return out, corrections
		},
	}
	s.add(o)
	return o
}

// DefineIntList объявляет список целых. accept может быть nil.
func (s *Schema) DefineIntList(name, comment string, def []int, accept func(int) bool) *Option[[]int] {
	o := &Option[[]int]{
		name:    name,
		comment: comment,
		kind:    KindIntList,
		def:     cloneSlice(def),
		clone:   cloneSlice[int],
		coerce: func(name string, raw any) ([]int, []Correction) {
			items, ok := toList(raw)
			if !ok {
				return cloneSlice(def), []Correction{wrongType(name, raw, KindIntList, def)}
			}
			out := make([]int, 0, len(items))
			var corrections []Correction
			for i, item := range items {
				n, ok := toInt(item)
				if !ok || (accept != nil && !accept(n)) {
					corrections = append(corrections, rejectedEntry(name, i, item))
					continue
				}
				out = append(out, n)
			}
			return out, corrections
		},
	}
	s.add(o)
	return o
}

// Build проверяет схему и возвращает неизменяемый Spec.
func (s *Schema) Build() (*Spec, error) {
	if len(s.errs) > 0 {
		return nil, errors.Join(s.errs...)
	}
	names := make(map[string]Declaration, len(s.decls))
	for _, d := range s.decls {
		names[d.Name()] = d
	}
	return &Spec{
		decls:  append([]Declaration(nil), s.decls...),
		byName: names,
	}, nil
}

// MustBuild как Build, но паникует: схема объявляется в коде, ошибка в ней: баг.
func (s *Schema) MustBuild() *Spec {
	spec, err := s.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

// Spec собранная схема опций
type Spec struct {
	decls  []Declaration
	byName map[string]Declaration
}

// Options возвращает объявления в порядке объявления
func (s *Spec) Options() []Declaration {
	return append([]Declaration(nil), s.decls...)
}

// Lookup находит объявление по имени
func (s *Spec) Lookup(name string) (Declaration, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// Correct проверяет одно значение опции по тем же правилам, что и Load.
func (s *Spec) Correct(name string, raw any) (any, []Correction, error) {
	d, ok := s.byName[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	value, corrections := d.correct(raw)
	return value, corrections, nil
}

// Load применяет схему к сырым значениям источника.
// Отсутствующий ключ получает значение по умолчанию, неверное значение
// заменяется значением по умолчанию, неверные элементы списков удаляются.
// Все исправления перечислены в Report; ошибок загрузка не возвращает.
func (s *Spec) Load(raw map[string]any) (*Values, Report) {
	values := &Values{values: make(map[string]any, len(s.decls))}
	var report Report

	for _, d := range s.decls {
		rawValue, present := raw[d.Name()]
		if !present || rawValue == nil {
			values.values[d.Name()] = d.DefaultValue()
			report.Defaulted = append(report.Defaulted, d.Name())
			continue
		}
		value, corrections := d.correct(rawValue)
		values.values[d.Name()] = value
		report.Corrections = append(report.Corrections, corrections...)
	}

	var unknown []string
	for key := range raw {
		if _, ok := s.byName[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		report.Corrections = append(report.Corrections, Correction{
			Option:  key,
			Kind:    CorrectionUnknownKey,
			Value:   raw[key],
			Index:   -1,
			Message: "unknown option ignored",
		})
	}

	return values, report
}

// Values скорректированные значения одной загрузки. Только чтение.
type Values struct {
	values map[string]any
}

// Raw возвращает значение по имени опции
func (v *Values) Raw(name string) (any, bool) {
	value, ok := v.values[name]
	return value, ok
}

func identity[T any](v T) T { return v }

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return append(make([]T, 0, len(in)), in...)
}

func formatFloat(f float64) string {
	if f == math.MaxFloat64 {
		return "1.7976931348623157E308"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}
