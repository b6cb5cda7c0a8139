package ringstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the result label.
const (
	resultOK   = "ok"
	resultFail = "fail"
)

// Collectors for ringstore, registered with the default registry. The "ring"
// label is the configured BaseName.
var (
	loadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringstore_load_total",
		Help: "Cumulative number of ring loads, by result.",
	}, []string{"ring", "result"})

	saveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringstore_save_total",
		Help: "Cumulative number of ring saves, by result.",
	}, []string{"ring", "result"})

	autoSaveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringstore_autosave_total",
		Help: "Cumulative number of saves triggered by a failed load, by result.",
	}, []string{"ring", "result"})

	anomalyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringstore_anomaly_total",
		Help: "Cumulative number of ring files found broken or ambiguous during loads, by kind.",
	}, []string{"ring", "kind"})

	saveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ringstore_save_duration_seconds",
		Help:    "Latency of ring saves, by durability tier.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"ring", "durability"})
)

func resultLabel(ok bool) string {
	if ok {
		return resultOK
	}

	return resultFail
}
