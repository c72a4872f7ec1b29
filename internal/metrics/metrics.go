package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt2broadlink/internal/router"
)

const namespace = "m2b"

// Metrics holds the bridge collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	dropped     prometheus.Counter
	duration    *prometheus.HistogramVec
	devicesOpen prometheus.Gauge
}

// New creates and registers the bridge collectors along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Routed bus messages by handler and result.",
		}, []string{"handler", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_dropped_total",
			Help:      "Messages dropped because the inbox was full.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency. Learn requests run for up to their budget.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"handler"}),
		devicesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_open",
			Help:      "Authenticated device sessions held by the registry.",
		}),
	}

	m.registry.MustRegister(
		m.messages,
		m.dropped,
		m.duration,
		m.devicesOpen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Record implements router.Recorder.
func (m *Metrics) Record(_ context.Context, o router.Outcome) error {
	m.messages.WithLabelValues(o.Handler, string(o.Result)).Inc()
	m.duration.WithLabelValues(o.Handler).Observe(o.Duration.Seconds())
	return nil
}

// InboxDropped counts one dropped message. It matches mqtt.Inbox.OnDrop.
func (m *Metrics) InboxDropped(mqtt.Message) {
	m.dropped.Inc()
}

// SetDevicesOpen sets the live session gauge. It matches
// registry.Registry.OnOpenCount.
func (m *Metrics) SetDevicesOpen(n int) {
	m.devicesOpen.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
