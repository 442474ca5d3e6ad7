// Package metrics exposes HomySync activity to Prometheus.
//
// A Metrics value observes the push channels, the snapshot loader and the
// device commander, and serves everything on a private registry:
//
//	homysync_channel_events_total{category}
//	homysync_channel_parse_errors_total{category}
//	homysync_channel_reconnects_total{category}
//	homysync_channel_up{category}
//	homysync_channel_backoff_seconds{category}
//	homysync_channel_attempt{category}
//	homysync_channel_uptime_seconds{category}
//	homysync_snapshot_loads_total{result}
//	homysync_commands_total{target,result}
package metrics
