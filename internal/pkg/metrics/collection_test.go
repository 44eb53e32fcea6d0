package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := setupPrometheusMetrics(registry)

	m.SearchStarted("random")
	m.SearchStarted("random")
	m.SearchFinished(OutcomeMatched, 2*time.Second)
	m.RaceLost()
	m.RoomCreated("match")
	m.ExpiredSearchesPurged(3)
	m.AddActiveSearches(2)
	m.AddActiveSearches(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.searchesStarted.With(prometheus.Labels{"game_mode": "random"})))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchesFinished.With(prometheus.Labels{"outcome": OutcomeMatched})))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.raceLost))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomsCreated.With(prometheus.Labels{"source": "match"})))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.expiredPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSearches))
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SearchStarted("topic")
	m.AddPollAttemptElapsedTime(5 * time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["matchroom_searches_started_total"])
	assert.True(t, names["matchroom_poll_attempt_elapsed_time_ms"])
}
