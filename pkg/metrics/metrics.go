// Package metrics provides Prometheus metrics for the WebDAV server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torboxdav_http_requests_total",
			Help: "Total number of WebDAV requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "torboxdav_http_request_duration_seconds",
			Help:    "Time until a WebDAV response finished, including streamed bodies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Link cache metrics
	linkCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torboxdav_link_cache_total",
			Help: "Link cache lookups by result (hit, miss, shared)",
		},
		[]string{"result"},
	)

	linkResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torboxdav_link_resolutions_total",
			Help: "Upstream download link requests by outcome",
		},
		[]string{"status"},
	)

	// Refresh metrics
	refreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torboxdav_refresh_runs_total",
			Help: "Filesystem refresh cycles by outcome",
		},
		[]string{"status"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "torboxdav_refresh_duration_seconds",
			Help:    "Duration of filesystem refresh cycles",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	filesystemNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torboxdav_filesystem_nodes",
			Help: "Number of paths in the virtual filesystem",
		},
	)

	// Content transfer metrics
	streamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torboxdav_stream_bytes_total",
			Help: "Total bytes relayed from upstream to clients",
		},
	)
)

// RecordHTTPRequest records a finished request
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLinkCache records a cache lookup result: "hit", "miss" or "shared"
func RecordLinkCache(result string) {
	linkCacheTotal.WithLabelValues(result).Inc()
}

// RecordLinkResolution records an upstream link request
func RecordLinkResolution(err error) {
	if err != nil {
		linkResolutionsTotal.WithLabelValues("error").Inc()
		return
	}
	linkResolutionsTotal.WithLabelValues("success").Inc()
}

// RecordRefresh records a refresh cycle
func RecordRefresh(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	refreshRunsTotal.WithLabelValues(status).Inc()
	refreshDuration.Observe(duration.Seconds())
}

// SetFilesystemNodes sets the current node count
func SetFilesystemNodes(n int) {
	filesystemNodes.Set(float64(n))
}

// AddStreamBytes adds relayed bytes
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
