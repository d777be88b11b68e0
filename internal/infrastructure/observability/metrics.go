package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry           *prometheus.Registry
	CapturesTotal      *prometheus.CounterVec
	CaptureErrorsTotal prometheus.Counter
	SavesTotal         prometheus.Counter
	SaveFailuresTotal  prometheus.Counter
	FindQueriesTotal   prometheus.Counter
	PurgesTotal        prometheus.Counter
	StoredProfiles     prometheus.Gauge
	EvictionsTotal     prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		CapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "captures_total",
			Help:      "Total profiled request/response exchanges",
		}, []string{"method"}),
		SavesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "saves_total",
			Help:      "Total profiles persisted",
		}),
		SaveFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "save_failures_total",
			Help:      "Total profile persistence failures",
		}),
		FindQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "find_queries_total",
			Help:      "Total profile search queries",
		}),
		PurgesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "purges_total",
			Help:      "Total purge operations",
		}),
		CaptureErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "capture_errors_total",
			Help:      "Total captures that surfaced a handler error or panic",
		}),
		StoredProfiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "request_profiler",
			Name:      "stored_profiles",
			Help:      "Profiles currently held in storage",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "request_profiler",
			Name:      "evictions_total",
			Help:      "Profiles evicted from the in-memory store",
		}),
	}
	r.MustRegister(m.CapturesTotal, m.CaptureErrorsTotal, m.SavesTotal, m.SaveFailuresTotal,
		m.FindQueriesTotal, m.PurgesTotal, m.StoredProfiles, m.EvictionsTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
