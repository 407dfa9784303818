package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CorrectionKind вид исправления, сделанного при загрузке
type CorrectionKind string

const (
	CorrectionWrongType     CorrectionKind = "wrong_type"
	CorrectionOutOfRange    CorrectionKind = "out_of_range"
	CorrectionEntryRejected CorrectionKind = "entry_rejected"
	CorrectionUnknownKey    CorrectionKind = "unknown_key"
)

// Correction одно исправление значения опции.
// Index: позиция элемента списка, -1 для скаляров и целых значений.
type Correction struct {
	Option  string         `json:"option"`
	Kind    CorrectionKind `json:"kind"`
	Value   any            `json:"value,omitempty"`
	Index   int            `json:"index"`
	Message string         `json:"message"`
}

// String форматирует исправление для логов
func (c Correction) String() string {
	if c.Index >= 0 {
		return fmt.Sprintf("%s[%d]=%v: %s", c.Option, c.Index, c.Value, c.Message)
	}
	return fmt.Sprintf("%s=%v: %s", c.Option, c.Value, c.Message)
}

// Report результат применения схемы к источнику
type Report struct {
	Corrections []Correction `json:"corrections"`
	// Defaulted опции, отсутствовавшие в источнике
	Defaulted []string `json:"defaulted"`
}

// Empty сообщает, что исправлений не было
func (r Report) Empty() bool {
	return len(r.Corrections) == 0
}

// Rejected возвращает отклонённые элементы списка option в исходном порядке
func (r Report) Rejected(option string) []any {
	var out []any
	for _, c := range r.Corrections {
		if c.Option == option && c.Kind == CorrectionEntryRejected {
			out = append(out, c.Value)
		}
	}
	return out
}

// CountByKind считает исправления по видам
func (r Report) CountByKind() map[CorrectionKind]int {
	counts := make(map[CorrectionKind]int)
	for _, c := range r.Corrections {
		counts[c.Kind]++
	}
	return counts
}

func wrongType(name string, raw any, want Kind, def any) Correction {
	return Correction{
		Option:  name,
		Kind:    CorrectionWrongType,
		Value:   raw,
		Index:   -1,
		Message: fmt.Sprintf("expected %s, got %T; using default %v", want, raw, def),
	}
}

func outOfRange(name string, raw any, bounds string, def any) Correction {
	return Correction{
		Option:  name,
		Kind:    CorrectionOutOfRange,
		Value:   raw,
		Index:   -1,
		Message: fmt.Sprintf("value outside %s; using default %v", bounds, def),
	}
}

func rejectedEntry(name string, index int, item any) Correction {
	return Correction{
		Option:  name,
		Kind:    CorrectionEntryRejected,
		Value:   item,
		Index:   index,
		Message: "entry rejected",
	}
}

// toInt приводит числа из YAML/JSON к int. Дробные значения не принимаются.
func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint:
		if uint64(v) > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return toInt(n)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32*float64(1<<32) || f > math.MaxInt32*float64(1<<32) {
		return 0, false
	}
	return int(f), true
}

// toFloat приводит любое число к float64
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		if n, ok := toInt(raw); ok {
			return float64(n), true
		}
		return 0, false
	}
}

func toList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
