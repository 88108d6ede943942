// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RendersTotal counts report renders by report name and outcome.
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportd",
		Name:      "renders_total",
		Help:      "Report renders by report name and status.",
	}, []string{"report", "status"})

	// RenderDuration observes end-to-end render time.
	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reportd",
		Name:      "render_duration_seconds",
		Help:      "Report render duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"report"})

	// CacheHitsTotal counts render cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportd",
		Name:      "render_cache_total",
		Help:      "Render cache lookups by result.",
	}, []string{"result"})

	// RegisterUploadsTotal counts register uploads by strategy and outcome.
	RegisterUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportd",
		Name:      "register_uploads_total",
		Help:      "Register uploads by strategy and status.",
	}, []string{"strategy", "status"})
)

// ObserveRender records one render outcome.
func ObserveRender(report, status string, start time.Time) {
	RendersTotal.WithLabelValues(report, status).Inc()
	RenderDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}
