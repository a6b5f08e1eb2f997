package player

import "github.com/prometheus/client_golang/prometheus"

// Metrics 播放编排器的 prometheus 指标
type Metrics struct {
	Commands         *prometheus.CounterVec
	Snapshots        *prometheus.CounterVec
	SnapshotsDropped prometheus.Counter
	ChannelBuilds    *prometheus.CounterVec
	CommandQueue     prometheus.Gauge
	Clients          prometheus.Gauge

	// 通知队列已满或 hub 已停止时丢弃的 audio_state_updated
	NotificationsDropped prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "commands_total",
			Help:      "Commands processed by the audio processor, by kind.",
		}, []string{"kind"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "snapshots_total",
			Help:      "Status snapshots emitted, by event.",
		}, []string{"event"}),
		SnapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "snapshots_dropped_total",
			Help:      "Status snapshots discarded because the status queue was full or nobody was connected.",
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "notifications_dropped_total",
			Help:      "State-updated notifications discarded because the hub queue was full or the hub had stopped.",
		}),
		ChannelBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "channel_builds_total",
			Help:      "Audio channel constructions, by result.",
		}, []string{"result"}),
		CommandQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audio",
			Name:      "command_queue_depth",
			Help:      "Commands waiting for the processor.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audio",
			Name:      "connected_clients",
			Help:      "Connected websocket clients.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Commands, m.Snapshots, m.SnapshotsDropped, m.NotificationsDropped, m.ChannelBuilds, m.CommandQueue, m.Clients)
	}
	return m
}
