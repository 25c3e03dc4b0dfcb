package protect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var correctionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_corrections_total",
	Help: "Number of corrective mutations issued",
}, []string{"module", "outcome"})

var echoesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_echoes_suppressed_total",
	Help: "Number of notifications recognized as the engine's own corrections",
}, []string{"module"})

var relocationAttempts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_relocation_attempts_total",
	Help: "Number of attributed relocations of the protected account",
})

var punishmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_punishments_total",
	Help: "Number of punishments applied to repeat offenders",
}, []string{"outcome"})
