package collapse

// NoOverride значение, означающее «явного значения нет, используйте вычисленное по твёрдости».
const NoOverride = -1

// Override пара из ссылки и значения прочности опоры
type Override[K comparable] struct {
	Ref   K
	Value int
}

// Ordered удаляет дубликаты, сохраняя позицию первого вхождения.
func Ordered[K comparable](refs []K) []K {
	seen := make(map[K]struct{}, len(refs))
	out := make([]K, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// PairOverrides сопоставляет ссылки и значения по позиции: i-е значение
// достаётся i-й ссылке, ссылки без значения получают NoOverride, лишние
// значения игнорируются. Повторная ссылка тоже занимает свою позицию; в
// результате она остаётся на месте первого вхождения с последним значением.
func PairOverrides[K comparable](refs []K, values []int) []Override[K] {
	index := make(map[K]int, len(refs))
	out := make([]Override[K], 0, len(refs))
	for i, ref := range refs {
		value := NoOverride
		if i < len(values) {
			value = values[i]
		}
		if at, dup := index[ref]; dup {
			out[at].Value = value
			continue
		}
		index[ref] = len(out)
		out = append(out, Override[K]{Ref: ref, Value: value})
	}
	return out
}

// BuildOverrides строит таблицу переопределений из пар.
// При повторе ключа побеждает последнее значение.
func BuildOverrides[K comparable](pairs []Override[K]) map[K]int {
	out := make(map[K]int, len(pairs))
	for _, p := range pairs {
		out[p.Ref] = p.Value
	}
	return out
}
