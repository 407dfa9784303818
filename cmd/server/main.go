package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/block-physics/internal/api"
	"github.com/annel0/block-physics/internal/auth"
	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/eventbus"
	"github.com/annel0/block-physics/internal/logging"
	"github.com/annel0/block-physics/internal/metrics"
	"github.com/annel0/block-physics/internal/observability"
	"github.com/annel0/block-physics/internal/registry"
	"github.com/annel0/block-physics/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "путь к configs/server.yaml (по умолчанию $COLLAPSE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logs, err := newLoggers(cfg.Logging)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	logging.SetDefaultLogger(logs.service)
	defer logs.close()

	if err := run(cfg, logs); err != nil {
		logging.Error("❌ %v", err)
		logs.close()
		os.Exit(1)
	}
	logging.Info("👋 Сервис опций обвала остановлен")
}

// loggers логгеры компонентов сервиса
type loggers struct {
	service *logging.Logger
	loader  *logging.Logger
	api     *logging.Logger
	close   func()
}

// newLoggers при to_file создаёт файловые логгеры компонентов через LoggerManager,
// иначе все компоненты пишут в stdout.
func newLoggers(cfg config.LoggingConfig) (*loggers, error) {
	level := logging.ParseLevel(cfg.Level)
	if !cfg.ToFile {
		return &loggers{
			service: logging.NewWriterLogger("collapse", os.Stdout, level),
			loader:  logging.NewWriterLogger("loader", os.Stdout, level),
			api:     logging.NewWriterLogger("api", os.Stdout, level),
			close:   func() {},
		}, nil
	}

	manager := logging.GetLoggerManager()
	service, err := manager.GetLogger("collapse")
	if err != nil {
		return nil, err
	}
	logs := &loggers{
		service: service,
		loader:  logging.GetLoaderLogger(),
		api:     logging.GetAPILogger(),
		close: func() {
			if err := manager.CloseAll(); err != nil {
				log.Printf("⚠️ %v", err)
			}
		},
	}
	for _, component := range manager.ListComponents() {
		if err := manager.SetLogLevel(component, level, logging.TRACE); err != nil {
			return nil, err
		}
	}
	return logs, nil
}

func run(cfg *config.Config, logs *loggers) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🧱 Запуск сервиса опций обвала (source=%s)", cfg.Options.Source)

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
			}
		}()
	}

	// === РЕЕСТР ===
	// пустой catalog_path даёт встроенный ванильный набор
	reg, err := registry.LoadMemory(cfg.Registry.CatalogPath)
	if err != nil {
		return fmt.Errorf("load registry catalog: %w", err)
	}
	logging.Info("📚 Реестр: %s", reg)

	// === ИСТОЧНИК ОПЦИЙ ===
	source, closeSource, err := openSource(cfg.Options)
	if err != nil {
		return err
	}
	defer closeSource()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("start event logging: %w", err)
	}

	// === МЕТРИКИ ===
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loaderMetrics := metrics.NewLoaderMetrics(promReg)
	busMetrics := eventbus.NewMetricsExporter(bus, promReg)
	busMetrics.Start()
	defer busMetrics.Stop()

	// === СЕРВИС ===
	service := collapse.NewService(collapse.NewLoader(reg), source, collapse.NewHolder(),
		collapse.WithEventBus(bus),
		collapse.WithRecorder(loaderMetrics),
		collapse.WithLogger(logs.loader),
		collapse.WithNodeName(cfg.EventBus.Source),
	)

	// Ошибка стартовой загрузки не фатальна: /health ответит 503 до первой удачной перезагрузки
	if _, err := service.Reload(ctx, collapse.TriggerStartup); err != nil {
		logging.Error("❌ Стартовая загрузка опций не удалась: %v", err)
	}

	if _, err := service.ListenForReloads(ctx); err != nil {
		return fmt.Errorf("listen for reloads: %w", err)
	}

	if cfg.Options.Source == config.SourceFile && cfg.Options.WatchEvery() > 0 {
		watcher := config.NewFileWatcher([]string{cfg.Options.Path}, cfg.Options.WatchEvery(), func(path string) {
			logging.Info("📝 Файл опций изменён: %s", path)
			_, _ = service.Reload(ctx, collapse.TriggerFile)
		})
		watcher.Start()
		defer watcher.Stop()
	}

	// === REST API ===
	var tokens *auth.TokenIssuer
	if secret := cfg.Server.GetAdminSecret(); secret != "" {
		if tokens, err = auth.NewTokenIssuer(secret); err != nil {
			return fmt.Errorf("admin secret: %w", err)
		}
	} else {
		logging.Warn("⚠️  admin_secret не задан: POST /api/v1/reload доступен без токена")
	}

	restServer := api.NewRestServer(api.Config{
		Port:       fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Service:    service,
		Registry:   reg,
		Bus:        bus,
		Tokens:     tokens,
		Logger:     logs.api,
		Registerer: promReg,
		Gatherer:   promReg,
	})

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- restServer.Start() }()
	go func() {
		logging.Info("📈 Prometheus метрики на %s/metrics", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logging.Info("✅ Сервис запущен")

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	return nil
}

// openSource открывает источник опций, выбранный в конфигурации
func openSource(cfg config.OptionsConfig) (config.Source, func(), error) {
	switch cfg.Source {
	case config.SourceBadger:
		bs, err := storage.OpenBadgerSource(cfg.BadgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger %s: %w", cfg.BadgerDir, err)
		}
		return bs, func() { _ = bs.Close() }, nil
	case config.SourceRedis:
		rcfg := storage.DefaultRedisConfig()
		rcfg.URL = cfg.RedisURL
		if cfg.RedisKey != "" {
			rcfg.Key = cfg.RedisKey
		}
		rs, err := storage.NewRedisSource(rcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return config.NewFileSource(cfg.Path), func() {}, nil
	}
}

// openBus поднимает JetStream при заданном URL, иначе шину в памяти
func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий в памяти")
		return eventbus.NewMemoryBus(0), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	logging.Info("🚌 Шина событий JetStream: %s (stream=%s)", cfg.URL, cfg.Stream)
	return bus, nil
}
