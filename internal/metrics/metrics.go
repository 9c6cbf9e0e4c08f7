package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "session",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	TorrentsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "torrents_active",
		Help:      "Number of torrents currently registered in the session.",
	})

	TorrentsRestored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "torrents_restored",
		Help:      "Number of torrents restored from persisted state at startup.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	AlertsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "alerts_processed_total",
		Help:      "Total engine alerts consumed by the dispatch loop.",
	})

	AlertsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "alerts_dropped_total",
		Help:      "Total alerts lost to engine buffer overflow.",
	})

	EventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "events_dropped_total",
		Help:      "Total events dropped on slow subscriber channels.",
	})

	ResumeSavesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "resume_saves_total",
		Help:      "Total resume-data persistence attempts.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all torrents.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TorrentsActive,
		TorrentsRestored,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		AlertsProcessedTotal,
		AlertsDroppedTotal,
		EventsDroppedTotal,
		ResumeSavesTotal,
		PeersConnected,
	)
}
