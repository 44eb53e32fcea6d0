package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for a finished search
const (
	OutcomeMatched   = "matched"
	OutcomeExpired   = "expired"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

type MatchmakingMetrics interface {
	SearchStarted(gameMode string)
	SearchFinished(outcome string, elapsed time.Duration)
	AddActiveSearches(delta int)
	AddPollAttemptElapsedTime(elapsed time.Duration)
	RaceLost()
	RoomCreated(source string)
	ExpiredSearchesPurged(n int64)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
