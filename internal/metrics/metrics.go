package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, served at /metrics by the api binary.
var (
	MarksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_marks_total",
		Help: "Scans that created a new attendance record.",
	})
	DuplicateScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_duplicate_scans_total",
		Help: "Scans collapsed onto an existing record.",
	})
	RejectedScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrattend_rejected_scans_total",
		Help: "Scans rejected before marking, by reason.",
	}, []string{"reason"})
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_sessions_started_total",
		Help: "Sessions opened.",
	})
	SessionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_sessions_completed_total",
		Help: "Sessions completed.",
	})
	AutoAbsentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_auto_absent_total",
		Help: "Absent records synthesized at completion.",
	})
	ClearsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrattend_clears_total",
		Help: "Destructive clear operations, by scope.",
	}, []string{"scope"})
)
