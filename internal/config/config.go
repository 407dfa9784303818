package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса.
// Физические опции обвала сюда не входят: они читаются из Options.Source.
type Config struct {
	Options   OptionsConfig   `yaml:"options"`
	Registry  RegistryConfig  `yaml:"registry"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Источники опций
const (
	SourceFile   = "file"
	SourceBadger = "badger"
	SourceRedis  = "redis"
)

type OptionsConfig struct {
	Source        string `yaml:"source"` // file | badger | redis
	Path          string `yaml:"path"`   // YAML-файл для SourceFile
	BadgerDir     string `yaml:"badger_dir"`
	RedisURL      string `yaml:"redis_url"`
	RedisKey      string `yaml:"redis_key"`
	WatchInterval int    `yaml:"watch_interval_seconds"` // 0: не следить за файлом
}

type RegistryConfig struct {
	CatalogPath string `yaml:"catalog_path"` // пусто: встроенный ванильный набор
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто: шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Source    string `yaml:"source"` // имя узла в конвертах событий
}

type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminSecret string `yaml:"admin_secret"` // base64, пусто: POST /reload без токена
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // host:port OTLP/HTTP, пусто: localhost:4318
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Options: OptionsConfig{
			Source:        SourceFile,
			Path:          "configs/collapse.yaml",
			BadgerDir:     "data",
			RedisKey:      "collapse:options",
			WatchInterval: 2,
		},
		EventBus: EventBusConfig{
			Stream:    "CONFIG",
			Retention: 24,
			Source:    "collapse-config",
		},
		Telemetry: TelemetryConfig{ServiceName: "collapse-config", Insecure: true, SampleRatio: 1},
		Logging:   LoggingConfig{Level: "INFO"},
	}
}

// WatchEvery интервал опроса файла опций
func (o OptionsConfig) WatchEvery() time.Duration {
	return time.Duration(o.WatchInterval) * time.Second
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "COLLAPSE_REST_PORT", 8089)
}

// GetMetricsPort возвращает Prometheus порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "COLLAPSE_METRICS_PORT", 2113)
}

// GetAdminSecret возвращает секрет подписи токенов: config -> env COLLAPSE_ADMIN_SECRET
func (s *ServerConfig) GetAdminSecret() string {
	if s.AdminSecret != "" {
		return s.AdminSecret
	}
	return os.Getenv("COLLAPSE_ADMIN_SECRET")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	switch c.Options.Source {
	case SourceFile:
		if c.Options.Path == "" {
			return fmt.Errorf("options.path is required for source %q", SourceFile)
		}
	case SourceBadger:
		if c.Options.BadgerDir == "" {
			return fmt.Errorf("options.badger_dir is required for source %q", SourceBadger)
		}
	case SourceRedis:
		if c.Options.RedisURL == "" {
			return fmt.Errorf("options.redis_url is required for source %q", SourceRedis)
		}
	default:
		return fmt.Errorf("unknown options.source %q", c.Options.Source)
	}
	if c.Options.WatchInterval < 0 {
		return fmt.Errorf("options.watch_interval_seconds must be >= 0")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be in [0, 1], got %v", r)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV COLLAPSE_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("COLLAPSE_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
