package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_dispatch_total",
	Help: "Number of handler invocations by outcome",
}, []string{"handler", "outcome"})

var dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "warden_dispatch_duration_seconds",
	Help:    "Time spent in a handler",
	Buckets: prometheus.DefBuckets,
}, []string{"handler"})

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_notifications_total",
	Help: "Number of gateway notifications received",
}, []string{"kind"})
