package voice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chainMoves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_chain_moves_total",
		Help: "Follower relocations issued by chain links.",
	}, []string{"outcome"})

	wakeupSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_wakeup_steps_total",
		Help: "Relocations issued by wakeup sequences.",
	}, []string{"outcome"})

	privateDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_private_disconnects_total",
		Help: "Members disconnected from private voice spaces.",
	})
)

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
