package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/homytech-sync/internal/channel"
)

// ChannelSource reports the supervised channels. *realtime.Service satisfies it.
type ChannelSource interface {
	Channels() []channel.Stats
}

var (
	attemptDesc = prometheus.NewDesc(
		namespace+"_channel_attempt",
		"Consecutive failed connection attempts, reset when the channel opens.",
		[]string{"category"}, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		namespace+"_channel_uptime_seconds",
		"Time since the channel last opened, 0 while down.",
		[]string{"category"}, nil,
	)
)

// ChannelCollector reads channel statistics at scrape time.
type ChannelCollector struct {
	src ChannelSource
}

// NewChannelCollector creates a collector over src.
func NewChannelCollector(src ChannelSource) *ChannelCollector {
	return &ChannelCollector{src: src}
}

// Describe implements prometheus.Collector.
func (c *ChannelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- attemptDesc
	ch <- uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *ChannelCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.src.Channels() {
		cat := string(st.Category)
		ch <- prometheus.MustNewConstMetric(attemptDesc, prometheus.GaugeValue, float64(st.Attempt), cat)
		ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, st.Uptime.Seconds(), cat)
	}
}
