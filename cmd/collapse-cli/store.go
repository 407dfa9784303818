package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/registry"
	"github.com/annel0/block-physics/internal/storage"
)

// optionStore изменяемое хранилище опций
type optionStore interface {
	config.Source
	Get(ctx context.Context, name string) (any, error)
	Put(ctx context.Context, name string, value any) error
	Delete(ctx context.Context, name string) error
	Import(ctx context.Context, raw map[string]any) error
	Close() error
}

type storeTarget struct {
	File     string
	Badger   string
	RedisURL string
	RedisKey string
}

func (t storeTarget) open() (optionStore, error) {
	switch {
	case t.Badger != "":
		bs, err := storage.OpenBadgerSource(t.Badger)
		if err != nil {
			return nil, err
		}
		return badgerStore{bs}, nil
	case t.RedisURL != "":
		cfg := storage.DefaultRedisConfig()
		cfg.URL = t.RedisURL
		if t.RedisKey != "" {
			cfg.Key = t.RedisKey
		}
		rs, err := storage.NewRedisSource(cfg)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, errors.New("either -badger or -redis is required")
	}
}

func withStore(t storeTarget, fn func(optionStore) error) error {
	s, err := t.open()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// badgerStore приводит BadgerSource к контекстным сигнатурам optionStore
type badgerStore struct {
	*storage.BadgerSource
}

func (b badgerStore) Get(_ context.Context, name string) (any, error) {
	return b.BadgerSource.Get(name)
}

func (b badgerStore) Put(_ context.Context, name string, value any) error {
	return b.BadgerSource.Put(name, value)
}

func (b badgerStore) Delete(_ context.Context, name string) error {
	return b.BadgerSource.Delete(name)
}

func (b badgerStore) Import(_ context.Context, raw map[string]any) error {
	return b.BadgerSource.Import(raw)
}

// parseValue разбирает значение в синтаксисе YAML: 5, 0.25, true, [a:b, c:d]
func parseValue(text string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", text, err)
	}
	return v, nil
}

// setOption проверяет значение по схеме и сохраняет его только без исправлений
func setOption(ctx context.Context, w io.Writer, s optionStore, catalog, name, text string) error {
	reg, err := registry.LoadMemory(catalog)
	if err != nil {
		return err
	}
	raw, err := parseValue(text)
	if err != nil {
		return err
	}

	value, corrections, err := collapse.NewLoader(reg).Spec().Correct(name, raw)
	if err != nil {
		return err
	}
	if len(corrections) > 0 {
		for _, c := range corrections {
			fmt.Fprintf(w, "⚠️  %s\n", c)
		}
		return fmt.Errorf("value for %s rejected: %d correction(s)", name, len(corrections))
	}

	if err := s.Put(ctx, name, value); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ %s updated in %s\n", name, s.Describe())
	return nil
}
