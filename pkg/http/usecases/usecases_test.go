package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
	"github.com/lintang-b-s/transitx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIndex struct {
	calls int
	cands []spatialindex.StopCandidate
}

func (f *fakeIndex) SearchWithinRadius(lat, lon, radius float64) []spatialindex.StopCandidate {
	f.calls++
	return f.cands
}

func TestResolverEntrySet(t *testing.T) {
	cands := []spatialindex.StopCandidate{
		spatialindex.NewStopCandidate(0, 30),
		spatialindex.NewStopCandidate(1, 150),
		spatialindex.NewStopCandidate(2, 450),
	}

	testCases := []struct {
		name    string
		mutate  func(req *routing.Request)
		want    []routing.WeightedStop
		wantErr error
	}{
		{
			name:   "walk from straight line distance",
			mutate: func(req *routing.Request) {},
			want: []routing.WeightedStop{
				routing.NewWeightedStop(0, da.SecToRtime(24)),
				routing.NewWeightedStop(1, da.SecToRtime(120)),
				routing.NewWeightedStop(2, da.SecToRtime(360)),
			},
		},
		{
			name: "banned stop is skipped",
			mutate: func(req *routing.Request) {
				require.NoError(t, req.BanStopPoint(0))
				require.NoError(t, req.BanStopPointHard(2))
			},
			want: []routing.WeightedStop{routing.NewWeightedStop(1, da.SecToRtime(120))},
		},
		{
			name: "walk distance limit",
			mutate: func(req *routing.Request) {
				req.WalkMaxDistance = 100
			},
			want: []routing.WeightedStop{routing.NewWeightedStop(0, da.SecToRtime(24))},
		},
		{
			name: "slow walker",
			mutate: func(req *routing.Request) {
				req.WalkSpeed = 0.6
				req.WalkMaxDistance = 100
			},
			want: []routing.WeightedStop{routing.NewWeightedStop(0, da.SecToRtime(60))},
		},
		{
			name: "nothing usable",
			mutate: func(req *routing.Request) {
				req.WalkMaxDistance = 10
			},
			wantErr: util.ErrNotFound,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := NewResolver(&fakeIndex{cands: cands}, 0.5, 16)
			require.NoError(t, err)

			req := routing.NewRequest()
			tc.mutate(&req)
			got, err := rs.EntrySet(-7.78, 110.36, &req)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, util.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolverCachesNearbyStops(t *testing.T) {
	idx := &fakeIndex{cands: []spatialindex.StopCandidate{spatialindex.NewStopCandidate(0, 10)}}
	rs, err := NewResolver(idx, 0.5, 16)
	require.NoError(t, err)

	rs.NearbyStops(-7.780001, 110.360001, 0.5)
	rs.NearbyStops(-7.780002, 110.360002, 0.5) // same grid cell
	assert.Equal(t, 1, idx.calls)

	rs.NearbyStops(-7.790, 110.360, 0.5)
	rs.NearbyStops(-7.780001, 110.360001, 1.0)
	assert.Equal(t, 3, idx.calls)
}

var calendarStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// newTestPlanner serves one bus line Tugu 08:00 -> Malioboro 08:20, every day of the week. Malioboro is the
// only stop of the malioboro-station area, the jogja area spans Malioboro and Prambanan.
func newTestPlanner(t *testing.T) *PlannerService {
	t.Helper()
	b := da.NewTimetableBuilder(calendarStart, 7)
	tugu := b.AddStopPoint("tugu", "Tugu", -7.7829, 110.3671, 0)
	malioboro := b.AddStopPoint("malioboro", "Malioboro", -7.7926, 110.3658, 0)
	prambanan := b.AddStopPoint("prambanan", "Prambanan", -7.7520, 110.4915, 0)
	b.AddStopArea("malioboro-station", "Malioboro Station", []da.Index{malioboro})
	b.AddStopArea("jogja", "Yogyakarta", []da.Index{malioboro, prambanan})
	jp := b.AddJourneyPattern([]da.Index{tugu, malioboro}, nil, pkg.MODE_BUS, "1A", "Malioboro", "trans-jogja-1a")
	b.AddVehicleJourney(jp, "1a-0800", da.SecToRtime(8*3600),
		[]da.StopTime{da.NewStopTime(0, 0), da.NewStopTime(da.SecToRtime(1200), da.SecToRtime(1200))},
		0x7f, pkg.VJA_NONE)
	tt, err := b.Build()
	require.NoError(t, err)

	e, err := engine.NewEngine(tt, zap.NewNop(), nil, routing.WithClock(func() time.Time { return time.Unix(0, 0) }))
	require.NoError(t, err)

	rt := spatialindex.NewRtree()
	rt.Build(tt, 0.01, zap.NewNop())
	rs, err := NewResolver(rt, 0.5, 64)
	require.NoError(t, err)
	return NewPlannerService(zap.NewNop(), e, rs)
}

func newTestQuery() PlanQuery {
	return PlanQuery{
		From:         Place{Lat: -7.7830, Lon: 110.3672},
		To:           Place{StopID: "malioboro"},
		Time:         time.Date(2026, 3, 3, 7, 50, 0, 0, time.UTC),
		MaxTransfers: pkg.DEFAULT_MAX_TRANSFERS,
		WalkSpeed:    pkg.DEFAULT_WALK_SPEED,
		Mode:         pkg.MODE_ALL,
		Optimise:     pkg.OPTIMISE_ALL,
		Strategy:     routing.STRATEGY_FIRST_DEPARTURE,
	}
}

func TestPlannerBuildRequest(t *testing.T) {
	ps := newTestPlanner(t)
	q := newTestQuery()
	q.Via = "tugu"
	q.Wheelchair = true
	q.ArriveBy = true

	req, err := ps.BuildRequest(q)
	require.NoError(t, err)
	assert.Equal(t, da.STOP_NONE, req.From)
	require.NotEmpty(t, req.FromEntries)
	assert.Equal(t, da.Index(0), req.FromEntries[0].Stop)
	assert.Equal(t, da.Index(1), req.To)
	assert.Equal(t, da.Index(0), req.Via)
	assert.Equal(t, uint32(1<<1), req.DayMask)
	assert.True(t, req.ArriveBy)
	assert.Equal(t, pkg.VJA_ACCESSIBLE, req.VJAttributes)
}

func TestPlannerBuildRequestErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(q *PlanQuery)
	}{
		{"unknown destination", func(q *PlanQuery) { q.To = Place{StopID: "kraton"} }},
		{"unknown via", func(q *PlanQuery) { q.Via = "kraton" }},
		{"origin far from any stop", func(q *PlanQuery) { q.From = Place{Lat: -6.2, Lon: 106.8} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps := newTestPlanner(t)
			q := newTestQuery()
			tc.mutate(&q)
			_, err := ps.BuildRequest(q)
			require.Error(t, err)
			assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
		})
	}
}

func TestPlannerPlan(t *testing.T) {
	ps := newTestPlanner(t)
	q := newTestQuery()

	plan, err := ps.Plan(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, plan.Itineraries, 1)

	it := plan.Itineraries[0]
	assert.Equal(t, 1, it.NRides)
	assert.Equal(t, da.STOP_NONE, it.Legs[0].From)
	assert.Equal(t, da.Index(0), it.Legs[0].To)
	arrival := routing.RtimeToEpoch(ps.GetTimetable(), &plan.Req, it.Arrival())
	assert.True(t, time.Date(2026, 3, 3, 8, 20, 0, 0, time.UTC).Equal(arrival))
}

func TestPlannerPlanWheelchair(t *testing.T) {
	ps := newTestPlanner(t)
	q := newTestQuery()
	q.Wheelchair = true

	plan, err := ps.Plan(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, plan.Itineraries)
}

func TestPlannerPlanInvalidWalkSpeed(t *testing.T) {
	ps := newTestPlanner(t)
	q := newTestQuery()
	q.WalkSpeed = 0.01
	q.From = Place{StopID: "tugu"}

	_, err := ps.Plan(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, util.ErrBadParamInput, util.ErrorCode(err))
}

func TestAreaEntrySet(t *testing.T) {
	tt := newTestPlanner(t).GetTimetable()

	t.Run("members weighted from the centroid", func(t *testing.T) {
		sa, ok := tt.StopAreaIndex("jogja")
		require.True(t, ok)
		req := routing.NewRequest()
		got, err := AreaEntrySet(tt, sa, &req)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, da.Index(1), got[0].Stop)
		assert.Equal(t, da.Index(2), got[1].Stop)
		assert.NotZero(t, got[0].Walk)
		assert.InDelta(t, float64(got[0].Walk), float64(got[1].Walk), 1)
	})

	t.Run("banned member is skipped", func(t *testing.T) {
		sa, _ := tt.StopAreaIndex("jogja")
		req := routing.NewRequest()
		require.NoError(t, req.BanStopPoint(2))
		got, err := AreaEntrySet(tt, sa, &req)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, da.Index(1), got[0].Stop)
	})

	t.Run("single member needs no walk", func(t *testing.T) {
		sa, _ := tt.StopAreaIndex("malioboro-station")
		req := routing.NewRequest()
		got, err := AreaEntrySet(tt, sa, &req)
		require.NoError(t, err)
		assert.Equal(t, []routing.WeightedStop{routing.NewWeightedStop(1, 0)}, got)
	})

	t.Run("every member banned", func(t *testing.T) {
		sa, _ := tt.StopAreaIndex("malioboro-station")
		req := routing.NewRequest()
		require.NoError(t, req.BanStopPointHard(1))
		_, err := AreaEntrySet(tt, sa, &req)
		require.Error(t, err)
		assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
	})
}

func TestPlannerPlanToStopArea(t *testing.T) {
	ps := newTestPlanner(t)
	q := newTestQuery()
	q.To = Place{StopID: "malioboro-station"}

	req, err := ps.BuildRequest(q)
	require.NoError(t, err)
	assert.Equal(t, da.STOP_NONE, req.To)
	assert.Equal(t, []routing.WeightedStop{routing.NewWeightedStop(1, 0)}, req.ToEntries)

	plan, err := ps.Plan(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Itineraries)
	arrival := routing.RtimeToEpoch(ps.GetTimetable(), &plan.Req, plan.Itineraries[0].Arrival())
	assert.True(t, time.Date(2026, 3, 3, 8, 20, 0, 0, time.UTC).Equal(arrival))
}
