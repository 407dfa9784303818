package collapse

import "sync/atomic"

// Holder хранит текущий опубликованный снимок.
// Читатели берут Current один раз и работают с полученным значением.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder создаёт пустой держатель
func NewHolder() *Holder { return &Holder{} }

// Current текущий снимок, nil до первой загрузки
func (h *Holder) Current() *Snapshot { return h.current.Load() }

// Store публикует снимок и возвращает предыдущий
func (h *Holder) Store(s *Snapshot) *Snapshot { return h.current.Swap(s) }
