package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the render loop. Registered via promauto so no
// explicit registration step is needed.
var (
	frameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "graphview_frame_duration_seconds",
			Help: "Duration of render frames in seconds",
			// 120fps down to multi-second stalls.
			Buckets: []float64{0.004, 0.008, 0.016, 0.033, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	qualityTier = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphview_quality_tier",
			Help: "Active adaptive quality tier (0=eco .. 3=ultra)",
		},
	)

	visibleNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphview_visible_nodes",
			Help: "Nodes in the most recent render set",
		},
	)

	visibleEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphview_visible_edges",
			Help: "Edges in the most recent render set",
		},
	)
)

// ObserveFrame records one frame duration.
func ObserveFrame(d time.Duration) {
	if !enabled {
		return
	}
	frameDuration.Observe(d.Seconds())
}

// SetQualityTier publishes the active quality tier.
func SetQualityTier(tier int) {
	if !enabled {
		return
	}
	qualityTier.Set(float64(tier))
}

// SetVisibleCounts publishes the size of the latest render set.
func SetVisibleCounts(nodes, edges int) {
	if !enabled {
		return
	}
	visibleNodes.Set(float64(nodes))
	visibleEdges.Set(float64(edges))
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
