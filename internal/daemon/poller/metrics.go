package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts poll activity per node. A nil registerer yields
// working but unregistered metrics, which keeps tests quiet.
type Metrics struct {
	Polls    *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration prometheus.Histogram
	Records  *prometheus.GaugeVec
}

// NewMetrics creates and registers the poller's metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dockwatch_polls_total",
			Help: "Completed polls per node.",
		}, []string{"node"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dockwatch_poll_errors_total",
			Help: "Failed fetches per node and kind.",
		}, []string{"node", "kind"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dockwatch_poll_duration_seconds",
			Help:    "Wall time of one poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		Records: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dockwatch_snapshot_records",
			Help: "Records in the freshest snapshot per node and kind.",
		}, []string{"node", "kind"}),
	}
}
