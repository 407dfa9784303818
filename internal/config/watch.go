package config

import (
	"os"
	"sync"
	"time"
)

// FileWatcher опрашивает время изменения файлов и вызывает onChange при изменении.
type FileWatcher struct {
	Paths    []string
	Interval time.Duration

	onChange  func(path string)
	stopCh    chan struct{}
	stopOnce  sync.Once
	lastMTime map[string]time.Time
}

// NewFileWatcher создаёт наблюдатель для путей с указанным интервалом
func NewFileWatcher(paths []string, interval time.Duration, onChange func(path string)) *FileWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &FileWatcher{
		Paths:     append([]string(nil), paths...),
		Interval:  interval,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		lastMTime: make(map[string]time.Time),
	}
}

// Start запускает опрос в отдельной горутине
func (w *FileWatcher) Start() {
	// Первый проход только запоминает текущие mtime
	w.scan(true)

	ticker := time.NewTicker(w.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scan(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop останавливает наблюдатель. Повторный вызов безопасен.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// scan сравнивает mtime и вызывает onChange для изменившихся файлов.
// Файл, появившийся после старта, тоже считается изменением.
func (w *FileWatcher) scan(prime bool) {
	for _, p := range w.Paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		mt := fi.ModTime()
		last, seen := w.lastMTime[p]
		w.lastMTime[p] = mt
		if prime {
			continue
		}
		if (!seen || !mt.Equal(last)) && w.onChange != nil {
			w.onChange(p)
		}
	}
}
