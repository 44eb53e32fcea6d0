package testsetup

import (
	"time"

	"github.com/go-demo/matchroom/internal/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) SearchStarted(gameMode string) {}

func (s stubMetricsCollection) SearchFinished(outcome string, elapsed time.Duration) {}

func (s stubMetricsCollection) AddActiveSearches(delta int) {}

func (s stubMetricsCollection) AddPollAttemptElapsedTime(elapsed time.Duration) {}

func (s stubMetricsCollection) RaceLost() {}

func (s stubMetricsCollection) RoomCreated(source string) {}

func (s stubMetricsCollection) ExpiredSearchesPurged(n int64) {}

func NewMetrics() metrics.MatchmakingMetrics {
	return stubMetricsCollection{}
}
