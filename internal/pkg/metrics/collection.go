package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	searchesStarted     prometheus.CounterVec
	searchesFinished    prometheus.CounterVec
	searchDuration      prometheus.HistogramVec
	activeSearches      prometheus.Gauge
	pollAttemptDuration prometheus.Histogram
	raceLost            prometheus.Counter
	roomsCreated        prometheus.CounterVec
	expiredPurged       prometheus.Counter
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	searchesStarted := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchroom_searches_started_total",
			Help: "Number of match searches submitted",
		}, []string{"game_mode"})

	searchesFinished := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchroom_searches_finished_total",
			Help: "Number of match searches that reached a terminal state",
		}, []string{"outcome"})

	searchDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchroom_search_duration_seconds",
			Help:    "Time from search submission to its terminal state",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}, []string{"outcome"})

	activeSearches := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchroom_active_searches",
			Help: "Number of polling tasks currently running",
		})

	//nolint:promlinter
	pollAttemptDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchroom_poll_attempt_elapsed_time_ms",
			Help:    "A histogram of poll attempt elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})

	raceLost := factory.NewCounter(
		prometheus.CounterOpts{
			Name: "matchroom_lock_race_lost_total",
			Help: "Number of lock attempts that lost to a concurrent matcher",
		})

	roomsCreated := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchroom_rooms_created_total",
			Help: "Number of rooms created",
		}, []string{"source"})

	expiredPurged := factory.NewCounter(
		prometheus.CounterOpts{
			Name: "matchroom_expired_searches_purged_total",
			Help: "Number of expired searches removed by the janitor",
		})

	return prometheusMetrics{
		searchesStarted:     *searchesStarted,
		searchesFinished:    *searchesFinished,
		searchDuration:      *searchDuration,
		activeSearches:      activeSearches,
		pollAttemptDuration: pollAttemptDuration,
		raceLost:            raceLost,
		roomsCreated:        *roomsCreated,
		expiredPurged:       expiredPurged,
	}
}

func (m prometheusMetrics) SearchStarted(gameMode string) {
	m.searchesStarted.With(prometheus.Labels{"game_mode": gameMode}).Inc()
}

func (m prometheusMetrics) SearchFinished(outcome string, elapsed time.Duration) {
	m.searchesFinished.With(prometheus.Labels{"outcome": outcome}).Inc()
	m.searchDuration.With(prometheus.Labels{"outcome": outcome}).Observe(elapsed.Seconds())
}

func (m prometheusMetrics) AddActiveSearches(delta int) {
	m.activeSearches.Add(float64(delta))
}

func (m prometheusMetrics) AddPollAttemptElapsedTime(elapsed time.Duration) {
	m.pollAttemptDuration.Observe(float64(elapsed.Milliseconds()))
}

func (m prometheusMetrics) RaceLost() {
	m.raceLost.Inc()
}

func (m prometheusMetrics) RoomCreated(source string) {
	m.roomsCreated.With(prometheus.Labels{"source": source}).Inc()
}

func (m prometheusMetrics) ExpiredSearchesPurged(n int64) {
	m.expiredPurged.Add(float64(n))
}
