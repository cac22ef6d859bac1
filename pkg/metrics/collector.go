package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RESULT_FOUND    = "found"
	RESULT_EMPTY    = "empty"
	RESULT_REJECTED = "rejected"
	RESULT_ERROR    = "error"
)

// Collector holds the journey planner metrics on its own registry.
type Collector struct {
	reg *prometheus.Registry

	Searches       *prometheus.CounterVec // labels: strategy, result
	SearchDuration *prometheus.HistogramVec
	Itineraries    prometheus.Histogram

	RealtimeUpdates      *prometheus.CounterVec // result label: applied|error
	RealtimeDelayedTrips prometheus.Gauge
	RealtimeCanceled     prometheus.Gauge

	StopPoints      prometheus.Gauge
	JourneyPatterns prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitx_searches_total",
			Help: "Total journey plan searches.",
		}, []string{"strategy", "result"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitx_search_duration_seconds",
			Help:    "Duration of journey plan searches.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"strategy"}),
		Itineraries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transitx_plan_itineraries",
			Help:    "Number of itineraries returned per plan.",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}),
		RealtimeUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitx_realtime_updates_total",
			Help: "Realtime feed polls.",
		}, []string{"result"}),
		RealtimeDelayedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitx_realtime_delayed_trips",
			Help: "Vehicle journeys carrying a realtime delay.",
		}),
		RealtimeCanceled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitx_realtime_canceled_trips",
			Help: "Vehicle journeys canceled by the realtime feed.",
		}),
		StopPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitx_timetable_stop_points",
			Help: "Stop points in the loaded timetable.",
		}),
		JourneyPatterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitx_timetable_journey_patterns",
			Help: "Journey patterns in the loaded timetable.",
		}),
	}

	reg.MustRegister(
		c.Searches, c.SearchDuration, c.Itineraries,
		c.RealtimeUpdates, c.RealtimeDelayedTrips, c.RealtimeCanceled,
		c.StopPoints, c.JourneyPatterns,
	)
	return c
}

// ObserveSearch records one finished search. c may be nil.
func (c *Collector) ObserveSearch(strategy, result string, elapsed time.Duration, nItineraries int) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(strategy, result).Inc()
	c.SearchDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if result == RESULT_FOUND || result == RESULT_EMPTY {
		c.Itineraries.Observe(float64(nItineraries))
	}
}

func (c *Collector) ObserveRealtime(err error, delayed, canceled int) {
	if c == nil {
		return
	}
	if err != nil {
		c.RealtimeUpdates.WithLabelValues(RESULT_ERROR).Inc()
		return
	}
	c.RealtimeUpdates.WithLabelValues("applied").Inc()
	c.RealtimeDelayedTrips.Set(float64(delayed))
	c.RealtimeCanceled.Set(float64(canceled))
}

func (c *Collector) SetTimetableSize(nStops, nJourneyPatterns int) {
	if c == nil {
		return
	}
	c.StopPoints.Set(float64(nStops))
	c.JourneyPatterns.Set(float64(nJourneyPatterns))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }
