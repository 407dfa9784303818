package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/block-physics/internal/collapse"
)

// LoaderMetrics Prometheus-метрики загрузок опций.
// Реализует collapse.Recorder.
//
// Метрики:
// * collapse_loads_total{trigger,result}: counter
// * collapse_corrections_total{option,kind}: counter
// * collapse_load_duration_seconds: histogram
// * collapse_snapshot_entries: gauge
// * collapse_snapshot_changes_total: counter
type LoaderMetrics struct {
	loads       *prometheus.CounterVec
	corrections *prometheus.CounterVec
	duration    prometheus.Histogram
	entries     prometheus.Gauge
	changes     prometheus.Counter
}

// NewLoaderMetrics создаёт метрики и регистрирует их в reg
func NewLoaderMetrics(reg prometheus.Registerer) *LoaderMetrics {
	m := &LoaderMetrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collapse",
			Name:      "loads_total",
			Help:      "Количество загрузок опций по источнику запуска и результату.",
		}, []string{"trigger", "result"}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collapse",
			Name:      "corrections_total",
			Help:      "Исправления значений опций при загрузке.",
		}, []string{"option", "kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "collapse",
			Name:      "load_duration_seconds",
			Help:      "Длительность загрузки опций.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collapse",
			Name:      "snapshot_entries",
			Help:      "Записей в опубликованном снимке (множества и таблицы).",
		}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collapse",
			Name:      "snapshot_changes_total",
			Help:      "Публикации снимка с изменившимся содержимым.",
		}),
	}

	reg.MustRegister(m.loads, m.corrections, m.duration, m.entries, m.changes)
	return m
}

// ObserveLoad реализует collapse.Recorder
func (m *LoaderMetrics) ObserveLoad(stats collapse.LoadStats) {
	m.loads.WithLabelValues(stats.Trigger, stats.Result()).Inc()
	m.duration.Observe(stats.Duration.Seconds())
	if stats.Err != nil {
		return
	}
	for _, c := range stats.Report.Corrections {
		m.corrections.WithLabelValues(c.Option, string(c.Kind)).Inc()
	}
	m.entries.Set(float64(stats.Entries))
	if stats.Changed {
		m.changes.Inc()
	}
}
