package collapse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/block-physics/internal/config"
	"github.com/annel0/block-physics/internal/eventbus"
	"github.com/annel0/block-physics/internal/logging"
)

// Источники перезагрузки
const (
	TriggerStartup = "startup"
	TriggerFile    = "file"
	TriggerEvent   = "event"
	TriggerAPI     = "api"
)

// LoadStats итог одной загрузки для метрик
type LoadStats struct {
	Trigger  string
	Duration time.Duration
	Report   config.Report
	Entries  int
	Changed  bool
	Err      error
}

// Result "ok" или "error"
func (s LoadStats) Result() string {
	if s.Err != nil {
		return "error"
	}
	return "ok"
}

// Recorder принимает итоги загрузок
type Recorder interface {
	ObserveLoad(stats LoadStats)
}

// PublishedPayload полезная нагрузка события SnapshotPublished
type PublishedPayload struct {
	SnapshotID  string `json:"snapshot_id"`
	Source      string `json:"source"`
	Trigger     string `json:"trigger"`
	Entries     int    `json:"entries"`
	Corrections int    `json:"corrections"`
	Changed     bool   `json:"changed"`
}

// Service выполняет загрузки и публикует снимки.
// Reload можно вызывать из любых горутин: загрузки выполняются по одной.
type Service struct {
	loader   *Loader
	source   config.Source
	holder   *Holder
	bus      eventbus.EventBus
	recorder Recorder
	tracer   trace.Tracer
	log      *logging.Logger
	node     string

	mu         sync.Mutex
	lastReport config.Report
}

// ServiceOption настраивает Service
type ServiceOption func(*Service)

// WithEventBus публиковать SnapshotPublished в шину
func WithEventBus(bus eventbus.EventBus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithRecorder передавать итоги загрузок в r
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLogger писать в указанный логгер
func WithLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithNodeName имя узла в событиях
func WithNodeName(name string) ServiceOption {
	return func(s *Service) { s.node = name }
}

// NewService создаёт сервис. Снимок не загружается до первого Reload.
func NewService(loader *Loader, source config.Source, holder *Holder, opts ...ServiceOption) *Service {
	s := &Service{
		loader: loader,
		source: source,
		holder: holder,
		tracer: otel.Tracer("github.com/annel0/block-physics/internal/collapse"),
		log:    logging.NewWriterLogger("collapse", os.Stdout, logging.INFO),
		node:   "collapse-config",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Holder держатель опубликованного снимка
func (s *Service) Holder() *Holder { return s.holder }

// Loader загрузчик сервиса
func (s *Service) Loader() *Loader { return s.loader }

// Source источник опций
func (s *Service) Source() config.Source { return s.source }

// LastReport отчёт последней успешной загрузки
func (s *Service) LastReport() config.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Reload перечитывает источник и публикует новый снимок.
// При ошибке чтения остаётся опубликованным предыдущий снимок.
func (s *Service) Reload(ctx context.Context, trigger string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "collapse.Reload", trace.WithAttributes(
		attribute.String("collapse.trigger", trigger),
		attribute.String("collapse.source", s.source.Describe()),
	))
	defer span.End()

	start := time.Now()
	snap, report, err := s.loader.Load(ctx, s.source)
	stats := LoadStats{Trigger: trigger, Duration: time.Since(start), Report: report, Err: err}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		s.log.Error("❌ Загрузка опций (%s) не удалась: %v", trigger, err)
		s.observe(stats)
		return nil, err
	}

	for _, c := range report.Corrections {
		s.log.Warn("⚠️ %s", c)
	}
	for _, dim := range snap.UnknownDimensions(s.loader.Lookup()) {
		s.log.Warn("⚠️ измерение %s отсутствует в реестре", dim)
	}

	prev := s.holder.Store(snap)
	s.lastReport = report
	stats.Entries = snap.Entries()
	stats.Changed = !prev.Equal(snap)
	s.observe(stats)

	span.SetAttributes(
		attribute.String("collapse.snapshot_id", snap.ID()),
		attribute.Int("collapse.corrections", len(report.Corrections)),
		attribute.Int("collapse.entries", stats.Entries),
	)
	s.log.Info("✅ Опции загружены из %s (%s): снимок %s, записей %d, исправлений %d, за %s",
		s.source.Describe(), trigger, snap.ID(), stats.Entries, len(report.Corrections), stats.Duration)

	s.publish(ctx, snap, stats)
	return snap, nil
}

// ListenForReloads подписывает сервис на события ReloadRequested.
func (s *Service) ListenForReloads(ctx context.Context) (eventbus.Subscription, error) {
	if s.bus == nil {
		return nil, fmt.Errorf("listen for reloads: event bus not configured")
	}
	return s.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.EventReloadRequested}}, func(ctx context.Context, ev *eventbus.Envelope) {
		s.log.Info("🔄 Запрос перезагрузки от %s (%s)", ev.Source, ev.ID)
		if _, err := s.Reload(ctx, TriggerEvent); err != nil {
			s.log.Error("Перезагрузка по событию %s: %v", ev.ID, err)
		}
	})
}

func (s *Service) observe(stats LoadStats) {
	if s.recorder != nil {
		s.recorder.ObserveLoad(stats)
	}
}

func (s *Service) publish(ctx context.Context, snap *Snapshot, stats LoadStats) {
	if s.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventbus.EventSnapshotPublished, s.node, PublishedPayload{
		SnapshotID:  snap.ID(),
		Source:      snap.Source(),
		Trigger:     stats.Trigger,
		Entries:     stats.Entries,
		Corrections: len(stats.Report.Corrections),
		Changed:     stats.Changed,
	})
	if err != nil {
		s.log.Error("Событие снимка: %v", err)
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Не удалось опубликовать %s: %v", ev.EventType, err)
	}
}
