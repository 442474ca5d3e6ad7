package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/homytech-sync/internal/channel"
	"github.com/nerrad567/homytech-sync/internal/device"
)

const namespace = "homysync"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics owns a private Prometheus registry with the HomySync collectors.
//
// It implements channel.Observer, snapshot.Observer and control.Observer,
// so one value can be handed to every component that reports activity.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	parseErrors *prometheus.CounterVec
	reconnects  *prometheus.CounterVec
	up          *prometheus.GaugeVec
	backoff     *prometheus.GaugeVec
	snapshots   *prometheus.CounterVec
	commands    *prometheus.CounterVec
}

// New creates the metrics and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_events_total",
			Help:      "Push events received and decoded, by channel.",
		}, []string{"category"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_parse_errors_total",
			Help:      "Push messages dropped because they could not be decoded.",
		}, []string{"category"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_reconnects_total",
			Help:      "Reconnects scheduled after a channel closed or failed to open.",
		}, []string{"category"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_up",
			Help:      "1 while the channel is open.",
		}, []string{"category"}),
		backoff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_backoff_seconds",
			Help:      "Delay before the pending reconnect, 0 while open.",
		}, []string{"category"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_loads_total",
			Help:      "Snapshot load attempts by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device commands sent, by target and result.",
		}, []string{"target", "result"}),
	}

	m.registry.MustRegister(
		m.events,
		m.parseErrors,
		m.reconnects,
		m.up,
		m.backoff,
		m.snapshots,
		m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create every channel series so dashboards show zeros, not gaps.
	for _, c := range device.Channels() {
		cat := string(c)
		m.events.WithLabelValues(cat)
		m.parseErrors.WithLabelValues(cat)
		m.reconnects.WithLabelValues(cat)
		m.up.WithLabelValues(cat).Set(0)
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister adds extra collectors to the registry.
func (m *Metrics) MustRegister(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ChannelOpened implements channel.Observer.
func (m *Metrics) ChannelOpened(category device.Category) {
	m.up.WithLabelValues(string(category)).Set(1)
	m.backoff.WithLabelValues(string(category)).Set(0)
}

// ChannelClosed implements channel.Observer.
func (m *Metrics) ChannelClosed(category device.Category, _ int, delay time.Duration) {
	m.up.WithLabelValues(string(category)).Set(0)
	m.reconnects.WithLabelValues(string(category)).Inc()
	m.backoff.WithLabelValues(string(category)).Set(delay.Seconds())
}

// EventReceived implements channel.Observer.
func (m *Metrics) EventReceived(category device.Category) {
	m.events.WithLabelValues(string(category)).Inc()
}

// EventDropped implements channel.Observer.
func (m *Metrics) EventDropped(category device.Category, _ error) {
	m.parseErrors.WithLabelValues(string(category)).Inc()
}

// SnapshotLoaded implements snapshot.Observer.
func (m *Metrics) SnapshotLoaded(err error) {
	m.snapshots.WithLabelValues(result(err)).Inc()
}

// CommandSent implements control.Observer.
func (m *Metrics) CommandSent(target string, err error) {
	m.commands.WithLabelValues(target, result(err)).Inc()
}

var _ channel.Observer = (*Metrics)(nil)

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
