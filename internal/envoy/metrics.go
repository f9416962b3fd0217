package envoy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	snapshots prometheus.Counter
	routes    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		snapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: "faasdeploy",
			Subsystem: "xds",
			Name:      "snapshots_published_total",
			Help:      "Snapshots pushed to the xDS cache.",
		}),
		routes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "faasdeploy",
			Subsystem: "xds",
			Name:      "routes",
			Help:      "Routes in the current snapshot.",
		}),
	}
}

func (m *Metrics) Published(routes int) {
	m.snapshots.Inc()
	m.routes.Set(float64(routes))
}
