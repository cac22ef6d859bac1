package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	http_server "github.com/lintang-b-s/transitx/pkg/http/server"
	"github.com/lintang-b-s/transitx/pkg/http/usecases"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestHandler serves Tugu -> Malioboro (bus 08:00-08:20) and Malioboro -> Prambanan
// (bus 08:30-09:10) on every day of the week starting 2026-03-02.
func newTestHandler(t *testing.T, useRateLimit bool) http.Handler {
	t.Helper()
	b := da.NewTimetableBuilder(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 7)
	tugu := b.AddStopPoint("tugu", "Tugu", -7.7829, 110.3671, 0)
	malioboro := b.AddStopPoint("malioboro", "Malioboro", -7.7926, 110.3658, 0)
	prambanan := b.AddStopPoint("prambanan", "Prambanan", -7.7520, 110.4915, 0)

	ride := func(min uint32) []da.StopTime {
		return []da.StopTime{da.NewStopTime(0, 0), da.NewStopTime(da.SecToRtime(min*60), da.SecToRtime(min*60))}
	}
	jp := b.AddJourneyPattern([]da.Index{tugu, malioboro}, nil, pkg.MODE_BUS, "1A", "Malioboro", "tj-1a")
	b.AddVehicleJourney(jp, "1a-0800", da.SecToRtime(8*3600), ride(20), 0x7f, pkg.VJA_NONE)
	jp = b.AddJourneyPattern([]da.Index{malioboro, prambanan}, nil, pkg.MODE_BUS, "1B", "Prambanan", "tj-1b")
	b.AddVehicleJourney(jp, "1b-0830", da.SecToRtime(8*3600+30*60), ride(40), 0x7f, pkg.VJA_NONE)
	tt, err := b.Build()
	require.NoError(t, err)

	collector := metrics.NewCollector()
	e, err := engine.NewEngine(tt, zap.NewNop(), collector,
		routing.WithClock(func() time.Time { return time.Unix(0, 0) }))
	require.NoError(t, err)

	rt := spatialindex.NewRtree()
	rt.Build(tt, 0.01, zap.NewNop())
	rs, err := usecases.NewResolver(rt, 0.5, 64)
	require.NoError(t, err)
	ps := usecases.NewPlannerService(zap.NewNop(), e, rs)

	config := http_server.Config{Port: 0, Timeout: time.Second, RateLimitRPS: 1, RateLimitBurst: 1}
	return NewAPI(zap.NewNop()).Handler(config, zap.NewNop(), useRateLimit, ps, collector.Handler())
}

type planBody struct {
	Data struct {
		RequestID   string `json:"request_id"`
		Itineraries []struct {
			Departure time.Time `json:"departure"`
			Arrival   time.Time `json:"arrival"`
			Transfers int       `json:"transfers"`
			Legs      []struct {
				Mode     string `json:"mode"`
				TripID   string `json:"trip_id"`
				Polyline string `json:"polyline"`
				From     struct {
					StopID string  `json:"stop_id"`
					Lat    float64 `json:"lat"`
				} `json:"from"`
				To struct {
					StopID string `json:"stop_id"`
				} `json:"to"`
			} `json:"legs"`
		} `json:"itineraries"`
	} `json:"data"`
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPlanEndpoint(t *testing.T) {
	h := newTestHandler(t, false)

	rec := get(t, h, "/api/plan?from_stop=tugu&to_stop=prambanan&time=2026-03-03T07:45:00Z&strategy=full")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body planBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.Data.RequestID)
	require.Len(t, body.Data.Itineraries, 1)

	it := body.Data.Itineraries[0]
	assert.Equal(t, 1, it.Transfers)
	assert.True(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC).Equal(it.Departure))
	assert.True(t, time.Date(2026, 3, 3, 9, 10, 0, 0, time.UTC).Equal(it.Arrival))

	trips := []string{}
	for _, leg := range it.Legs {
		if leg.TripID != "" {
			trips = append(trips, leg.TripID)
			assert.Equal(t, "bus", leg.Mode)
			assert.NotEmpty(t, leg.Polyline)
		}
	}
	assert.Equal(t, []string{"1a-0800", "1b-0830"}, trips)
}

func TestPlanEndpointFromCoordinate(t *testing.T) {
	h := newTestHandler(t, false)

	rec := get(t, h, "/api/plan?from_lat=-7.7830&from_lon=110.3672&to_stop=malioboro&time=2026-03-03T07:45:00Z")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body planBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Itineraries, 1)
	first := body.Data.Itineraries[0].Legs[0]
	assert.Equal(t, "walk", first.Mode)
	assert.Empty(t, first.From.StopID)
	assert.InDelta(t, -7.7830, first.From.Lat, 1e-9)
	assert.Equal(t, "tugu", first.To.StopID)
}

func TestPlanEndpointErrors(t *testing.T) {
	testCases := []struct {
		name   string
		query  string
		status int
		msg    string
	}{
		{"missing origin", "to_stop=malioboro", http.StatusBadRequest, "FromLat"},
		{"bad latitude", "from_lat=-97&from_lon=110&to_stop=malioboro", http.StatusBadRequest, "FromLat"},
		{"bad time", "from_stop=tugu&to_stop=malioboro&time=tomorrow", http.StatusBadRequest, "RFC3339"},
		{"unknown strategy", "from_stop=tugu&to_stop=malioboro&strategy=fastest", http.StatusBadRequest, "Strategy"},
		{"too many transfers", "from_stop=tugu&to_stop=malioboro&max_transfers=9", http.StatusBadRequest, "MaxTransfers"},
		{"unknown stop", "from_stop=kraton&to_stop=malioboro", http.StatusNotFound, "kraton"},
		{"no stop nearby", "from_lat=-6.2&from_lon=106.8&to_stop=malioboro", http.StatusNotFound, "walking distance"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, false)
			rec := get(t, h, "/api/plan?"+tc.query)
			assert.Equal(t, tc.status, rec.Code)

			var body struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error.Message, tc.msg)
		})
	}
}

func TestNearbyStopsEndpoint(t *testing.T) {
	h := newTestHandler(t, false)

	rec := get(t, h, "/api/stops/nearby?lat=-7.7830&lon=110.3671&radius=1.5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			StopID   string  `json:"stop_id"`
			Distance float64 `json:"distance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "tugu", body.Data[0].StopID)
	assert.Equal(t, "malioboro", body.Data[1].StopID)
	assert.Less(t, body.Data[0].Distance, body.Data[1].Distance)

	rec = get(t, h, "/api/stops/nearby?lat=-7.7830")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = get(t, h, "/api/stops/nearby?lat=-7.7830&lon=110.3671&radius=50")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestHandler(t, false)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	get(t, h, "/api/plan?from_stop=tugu&to_stop=malioboro&time=2026-03-03T07:45:00Z")
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `transitx_searches_total{result="found",strategy="first"} 1`)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, true)

	assert.Equal(t, http.StatusOK, get(t, h, "/api/stops/nearby?lat=-7.7830&lon=110.3671").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/stops/nearby?lat=-7.7830&lon=110.3671").Code)
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})

	t.Run("recover panic", func(t *testing.T) {
		api := NewAPI(zap.NewNop())
		h := api.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := get(t, h, "/")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "close", rec.Header().Get("Connection"))
	})

	t.Run("enforce json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		EnforceJSONHandler(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("real ip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
		RealIP(ok).ServeHTTP(rec, req)
		assert.Equal(t, "10.0.0.7", rec.Body.String())
	})

	t.Run("keeps a valid request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "0b6b4f0e-8b1a-4c1e-9c5e-1f6f2a4b3c2d")
		Labels(ok).ServeHTTP(rec, req)
		assert.Equal(t, "0b6b4f0e-8b1a-4c1e-9c5e-1f6f2a4b3c2d", rec.Header().Get("X-Request-ID"))
	})

	t.Run("host only", func(t *testing.T) {
		assert.Equal(t, "192.0.2.1", hostOnly("192.0.2.1:1234"))
		assert.Equal(t, "10.0.0.7", hostOnly("10.0.0.7"))
	})
}
