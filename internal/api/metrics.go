package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talgya/stalk-market/internal/market"
)

const (
	sourceLive  = "live"
	sourceTable = "table"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stalk_predictions_total",
		Help: "Predictions answered, by source",
	}, []string{"source"})

	predictionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stalk_prediction_duration_seconds",
		Help:    "Time spent searching or matching one prediction",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50µs to ~100ms
	}, []string{"source"})

	survivingCombinations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stalk_prediction_surviving_combinations",
		Help:    "Combinations left after filtering by observed prices",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 70},
	})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stalk_rate_limited_total",
		Help: "Requests rejected by the per-IP limiter",
	})

	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stalk_rebuilds_total",
		Help: "Table rebuilds by result",
	}, []string{"result"})
)

func observePrediction(source string, pred market.Prediction, elapsed time.Duration) {
	predictionsTotal.WithLabelValues(source).Inc()
	predictionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	survivingCombinations.Observe(float64(pred.Surviving()))
}
