package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoadmin_upstream_requests_total",
		Help: "Total feature-service requests by call kind (ids|features)",
	}, []string{"call"})
	UpstreamRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoadmin_upstream_retries_total",
		Help: "Total transient retries against the feature service",
	})
	UpstreamFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoadmin_upstream_fail_total",
		Help: "Total terminal feature-service failures by class",
	}, []string{"class"})
	UpstreamDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoadmin_upstream_duration_ms",
		Help:    "Feature-service call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	BreakerOpenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoadmin_breaker_open_total",
		Help: "Total country circuit-breaker open events",
	})
	ImportRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoadmin_import_rows_total",
		Help: "Total admin-area rows written by kind (inserted|updated)",
	}, []string{"kind"})
	ResolveRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoadmin_resolve_requests_total",
		Help: "Total point/address resolve requests",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoadmin_geocode_fail_total",
		Help: "Total geocode collaborator failures",
	})
)

func init() {
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRetriesTotal)
	prometheus.MustRegister(UpstreamFailTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(BreakerOpenTotal)
	prometheus.MustRegister(ImportRowsTotal)
	prometheus.MustRegister(ResolveRequestsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
}

// Handler 暴露 /metrics 抓取端点，由 HTTP 服务挂载。
func Handler() http.Handler { return promhttp.Handler() }
