package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	marksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markbook_marks_total",
		Help: "Attendance marking attempts by outcome.",
	}, []string{"outcome"})

	faceCallSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "markbook_face_call_seconds",
		Help:    "Latency of embedding store calls during verification.",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	outcomeManual   = "manual"
	outcomeVerified = "verified"
	outcomeProxy    = "proxy"
	outcomeError    = "error"
)
