package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source отдаёт сырые значения опций: имя опции -> значение
// (bool, число, строка, список).
type Source interface {
	Read(ctx context.Context) (map[string]any, error)
	// Describe короткое описание источника для логов.
	Describe() string
}

// FileSource читает опции из плоского YAML-файла.
// Отсутствующий файл равносилен пустому: все опции получат значения по умолчанию.
type FileSource struct {
	Path string
}

// NewFileSource создаёт источник для YAML-файла
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Read реализует Source
func (s *FileSource) Read(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return raw, nil
}

// Describe реализует Source
func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

// MapSource неизменяемый источник в памяти
type MapSource map[string]any

// Read реализует Source, возвращая копию верхнего уровня
func (m MapSource) Read(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// Describe реализует Source
func (m MapSource) Describe() string {
	return "memory"
}
