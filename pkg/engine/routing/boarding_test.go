package routing

import (
	"testing"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stopP da.Index = iota
	stopQ
	stopR
	stopS
)

const (
	jpPQR da.Index = iota
	jpRS
)

func offsets(stopTimes ...da.Rtime) []da.StopTime {
	out := make([]da.StopTime, 0, len(stopTimes))
	for _, st := range stopTimes {
		out = append(out, da.NewStopTime(st, st))
	}
	return out
}

// buildIntervalNetwork runs line 1 P-Q-R every 30 minutes from 07:00 to 08:30 and line 2 R-S at 07:40,
// 08:10 and 08:40.
//
//	P +0 -> Q +10 -> R +20
//	R +0 -> S +15
func buildIntervalNetwork(t *testing.T) *da.Timetable {
	t.Helper()
	b := da.NewTimetableBuilder(calendarStart, 7)
	b.AddStopPoint("P", "Papa", -7.70, 110.30, 0)
	b.AddStopPoint("Q", "Quebec", -7.71, 110.31, 0)
	b.AddStopPoint("R", "Romeo", -7.72, 110.32, 0)
	b.AddStopPoint("S", "Sierra", -7.73, 110.33, 0)

	jp := b.AddJourneyPattern([]da.Index{stopP, stopQ, stopR}, nil, pkg.MODE_BUS, "1", "Romeo", "line-1")
	// added out of order, the builder sorts by first departure
	for _, begin := range []da.Rtime{hm(8, 0), hm(7, 0), hm(8, 30), hm(7, 30)} {
		id := "pqr-" + begin.String()
		b.AddVehicleJourney(jp, id, begin, offsets(0, hm(0, 10), hm(0, 20)), 0x7f, pkg.VJA_NONE)
	}
	jp = b.AddJourneyPattern([]da.Index{stopR, stopS}, nil, pkg.MODE_BUS, "2", "Sierra", "line-2")
	for _, begin := range []da.Rtime{hm(7, 40), hm(8, 10), hm(8, 40)} {
		id := "rs-" + begin.String()
		b.AddVehicleJourney(jp, id, begin, offsets(0, hm(0, 15)), 0x7f, pkg.VJA_NONE)
	}

	tt, err := b.Build()
	require.NoError(t, err)
	return tt
}

func rideLegs(it *Itinerary) []Leg {
	out := make([]Leg, 0, it.NRides)
	for _, leg := range it.Legs {
		if !leg.IsWalk() {
			out = append(out, leg)
		}
	}
	return out
}

func TestBoardVehicleJourney(t *testing.T) {
	testCases := []struct {
		name      string
		arriveBy  bool
		time      da.Rtime
		dayMask   uint32
		vj        da.Index
		departure da.Rtime
		arrival   da.Rtime
	}{
		{
			name:      "first trip after the departure time",
			time:      at(7, 5),
			vj:        1,
			departure: at(7, 30),
			arrival:   at(7, 50),
		},
		{
			name:      "a minute after a departure waits for the next trip",
			time:      at(8, 1),
			vj:        3,
			departure: at(8, 30),
			arrival:   at(8, 50),
		},
		{
			name:      "departing exactly on time",
			time:      at(8, 30),
			vj:        3,
			departure: at(8, 30),
			arrival:   at(8, 50),
		},
		{
			name:      "after the last trip rides tomorrow",
			time:      at(8, 31),
			vj:        0,
			departure: at(7, 0) + da.RTIME_ONE_DAY,
			arrival:   at(7, 20) + da.RTIME_ONE_DAY,
		},
		{
			name:      "arrive-by takes the last trip arriving in time",
			arriveBy:  true,
			time:      at(8, 15),
			vj:        1,
			departure: at(7, 30),
			arrival:   at(7, 50),
		},
		{
			name:      "arrive-by exactly on time",
			arriveBy:  true,
			time:      at(8, 20),
			vj:        2,
			departure: at(8, 0),
			arrival:   at(8, 20),
		},
		{
			name:      "arrive-by before the first trip rides yesterday",
			arriveBy:  true,
			time:      at(6, 50),
			dayMask:   1 << 1,
			vj:        3,
			departure: at(8, 30) - da.RTIME_ONE_DAY,
			arrival:   at(8, 50) - da.RTIME_ONE_DAY,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tt := buildIntervalNetwork(t)
			r := newTestRouter(t, tt)
			req := newTestRequest(stopP, stopR, tc.time)
			req.ArriveBy = tc.arriveBy
			if tc.dayMask != 0 {
				req.DayMask = tc.dayMask
			}

			plan, err := r.RouteFirstDeparture(req)
			require.NoError(t, err)
			require.Equal(t, []int{1}, rides(plan))
			assert.Empty(t, CheckPlanInvariants(plan, 0))

			legs := rideLegs(&plan.Itineraries[0])
			require.Len(t, legs, 1)
			assert.Equal(t, jpPQR, legs[0].JourneyPattern)
			assert.Equal(t, tc.vj, legs[0].VehicleJourney)
			assert.Equal(t, tc.departure, legs[0].T0)
			assert.Equal(t, tc.arrival, legs[0].T1)
		})
	}
}

func TestReboardVehicleJourney(t *testing.T) {
	testCases := []struct {
		name     string
		via      da.Index
		vj       da.Index
		boardSP  da.Index
		arrivalR da.Rtime
	}{
		{"earlier trip reached on foot replaces the held one", da.STOP_NONE, 0, stopQ, at(7, 20)},
		{"re-boarding at the via stop", stopQ, 0, stopQ, at(7, 20)},
		{"trip boarded at the via stop is kept", stopP, 1, stopP, at(7, 50)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tt := buildIntervalNetwork(t)
			r := newTestRouter(t, tt)
			req := newTestRequest(da.STOP_NONE, stopR, at(7, 5))
			req.FromEntries = []WeightedStop{NewWeightedStop(stopP, 0), NewWeightedStop(stopQ, hm(0, 5))}
			req.Via = tc.via
			require.NoError(t, r.Route(&req))

			i := r.state.idx(0, stopR)
			got, ok := r.RideTime(0, stopR)
			require.True(t, ok)
			assert.Equal(t, tc.arrivalR, got)
			assert.Equal(t, tc.vj, r.state.backVJ[i])
			assert.Equal(t, tc.boardSP, r.state.rideFrom[i])
		})
	}
}

func TestReboardVehicleJourneyArriveBy(t *testing.T) {
	tt := buildIntervalNetwork(t)
	r := newTestRouter(t, tt)
	req := newTestRequest(stopP, da.STOP_NONE, at(8, 15))
	req.ArriveBy = true
	req.ToEntries = []WeightedStop{NewWeightedStop(stopR, 0), NewWeightedStop(stopQ, hm(0, 5))}
	require.NoError(t, r.Route(&req))

	// trip 1 is boarded backwards at R, trip 2 still reaches Q by 08:10
	i := r.state.idx(0, stopP)
	got, ok := r.RideTime(0, stopP)
	require.True(t, ok)
	assert.Equal(t, at(8, 0), got)
	assert.Equal(t, da.Index(2), r.state.backVJ[i])
	assert.Equal(t, stopQ, r.state.rideFrom[i])
}

// buildOvernightNetwork runs U-W-V at 00:10 and at 23:30, the late trip reaches W at 00:15 and V at 00:30
// of the next day.
func buildOvernightNetwork(t *testing.T) *da.Timetable {
	t.Helper()
	b := da.NewTimetableBuilder(calendarStart, 7)
	u := b.AddStopPoint("U", "Uniform", 0, 0, 0)
	w := b.AddStopPoint("W", "Whiskey", 0, 0, 0)
	v := b.AddStopPoint("V", "Victor", 0, 0, 0)
	jp := b.AddJourneyPattern([]da.Index{u, w, v}, nil, pkg.MODE_RAIL, "N", "Victor", "line-n")
	b.AddVehicleJourney(jp, "night", hm(23, 30), offsets(0, hm(0, 45), hm(1, 0)), 0x7f, pkg.VJA_NONE)
	b.AddVehicleJourney(jp, "early", hm(0, 10), offsets(0, hm(0, 45), hm(1, 0)), 0x7f, pkg.VJA_NONE)
	tt, err := b.Build()
	require.NoError(t, err)
	return tt
}

func TestBoardYesterdaysOvernightTrip(t *testing.T) {
	const stopW, stopV = da.Index(1), da.Index(2)

	testCases := []struct {
		name    string
		dayMask uint32
		vj      da.Index
		t0      da.Rtime
		t1      da.Rtime
	}{
		{"yesterday's late trip is still running", 1 << 1, 1, at(0, 15), at(0, 30)},
		{"no service yesterday waits for today's first trip", 1, 0, at(0, 55), at(1, 10)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tt := buildOvernightNetwork(t)
			require.True(t, tt.GetJourneyPattern(0).Overlaps())

			r := newTestRouter(t, tt)
			req := newTestRequest(stopW, stopV, at(0, 5))
			req.DayMask = tc.dayMask

			plan, err := r.RouteFirstDeparture(req)
			require.NoError(t, err)
			require.Equal(t, []int{1}, rides(plan))
			assert.Empty(t, CheckPlanInvariants(plan, 0))

			legs := rideLegs(&plan.Itineraries[0])
			require.Len(t, legs, 1)
			assert.Equal(t, tc.vj, legs[0].VehicleJourney)
			assert.Equal(t, tc.t0, legs[0].T0)
			assert.Equal(t, tc.t1, legs[0].T1)
		})
	}
}

func TestJourneyPatternPointAttributes(t *testing.T) {
	const stopG, stopH, stopI = da.Index(0), da.Index(1), da.Index(2)
	open := pkg.JPP_BOARDING | pkg.JPP_ALIGHTING

	testCases := []struct {
		name     string
		attrs    []pkg.JPPAttribute
		from, to da.Index
		arriveBy bool
		rides    []int
	}{
		{"every point open", nil, stopG, stopH, false, []int{1}},
		{"no alighting at H", []pkg.JPPAttribute{open, pkg.JPP_BOARDING, open}, stopG, stopH, false, []int{}},
		{"no alighting at H arriving", []pkg.JPPAttribute{open, pkg.JPP_BOARDING, open}, stopG, stopH, true, []int{}},
		{"boarding at H is still allowed", []pkg.JPPAttribute{open, pkg.JPP_BOARDING, open}, stopH, stopI, false, []int{1}},
		{"no boarding at G", []pkg.JPPAttribute{pkg.JPP_ALIGHTING, open, open}, stopG, stopI, false, []int{}},
		{"no boarding at G arriving", []pkg.JPPAttribute{pkg.JPP_ALIGHTING, open, open}, stopG, stopI, true, []int{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := da.NewTimetableBuilder(calendarStart, 7)
			b.AddStopPoint("G", "Golf", 0, 0, 0)
			b.AddStopPoint("H", "Hotel", 0, 0, 0)
			b.AddStopPoint("I", "India", 0, 0, 0)
			jp := b.AddJourneyPattern([]da.Index{stopG, stopH, stopI}, tc.attrs, pkg.MODE_BUS, "5", "India", "line-5")
			b.AddVehicleJourney(jp, "ghi", hm(9, 0), offsets(0, hm(0, 10), hm(0, 20)), 0x7f, pkg.VJA_NONE)
			tt, err := b.Build()
			require.NoError(t, err)

			r := newTestRouter(t, tt)
			req := newTestRequest(tc.from, tc.to, at(8, 0))
			if tc.arriveBy {
				req.Time = at(10, 0)
				req.ArriveBy = true
			}
			plan, err := r.RouteFirstDeparture(req)
			require.NoError(t, err)
			assert.Equal(t, tc.rides, rides(plan))
		})
	}
}

func TestParallelLinesPickEarliestArrival(t *testing.T) {
	testCases := []struct {
		name      string
		fastFirst bool
	}{
		{"fast line built first", true},
		{"slow line built first", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := da.NewTimetableBuilder(calendarStart, 7)
			a := b.AddStopPoint("A", "Alpha", 0, 0, 0)
			z := b.AddStopPoint("Z", "Zulu", 0, 0, 0)
			fast := func() {
				jp := b.AddJourneyPattern([]da.Index{a, z}, nil, pkg.MODE_BUS, "fast", "Zulu", "line-fast")
				b.AddVehicleJourney(jp, "fast-1", hm(8, 15), offsets(0, hm(0, 30)), 0x7f, pkg.VJA_NONE)
			}
			slow := func() {
				jp := b.AddJourneyPattern([]da.Index{a, z}, nil, pkg.MODE_BUS, "slow", "Zulu", "line-slow")
				b.AddVehicleJourney(jp, "slow-1", hm(8, 10), offsets(0, hm(0, 40)), 0x7f, pkg.VJA_NONE)
			}
			if tc.fastFirst {
				fast()
				slow()
			} else {
				slow()
				fast()
			}
			tt, err := b.Build()
			require.NoError(t, err)

			r := newTestRouter(t, tt)
			req := newTestRequest(a, z, at(8, 0))
			req.MaxTransfers = 0
			req.Optimise = pkg.OPTIMISE_SHORTEST

			plan, err := r.RouteFirstDeparture(req)
			require.NoError(t, err)
			its := plan.Filter(req.Optimise)
			require.Len(t, its, 1)
			assert.Equal(t, at(8, 45), its[0].Arrival())

			legs := rideLegs(&its[0])
			require.Len(t, legs, 1)
			assert.Equal(t, "fast", tt.GetJourneyPattern(legs[0].JourneyPattern).GetLineCode())
		})
	}
}

// a trip held on tomorrow that runs past the end of the search window is not swapped for today's trip at
// a later stop, even when that stop is reached in time for it.
func TestHeldTripLeavingTheWindowIsNotReplaced(t *testing.T) {
	const stopJ, stopK, stopL = da.Index(0), da.Index(1), da.Index(2)

	testCases := []struct {
		name     string
		entries  []WeightedStop
		rides    []int
		arrivals []da.Rtime
	}{
		{
			name:     "boarding today's trip at K",
			entries:  []WeightedStop{NewWeightedStop(stopK, hm(3, 0))},
			rides:    []int{1},
			arrivals: []da.Rtime{at(25, 10)},
		},
		{
			name:     "tomorrow's trip held from J hides today's trip at K",
			entries:  []WeightedStop{NewWeightedStop(stopJ, 0), NewWeightedStop(stopK, hm(3, 0))},
			rides:    []int{},
			arrivals: []da.Rtime{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := da.NewTimetableBuilder(calendarStart, 7)
			b.AddStopPoint("J", "Juliett", 0, 0, 0)
			b.AddStopPoint("K", "Kilo", 0, 0, 0)
			b.AddStopPoint("L", "Lima", 0, 0, 0)
			jp := b.AddJourneyPattern([]da.Index{stopJ, stopK, stopL}, nil, pkg.MODE_RAIL, "M", "Lima", "line-m")
			b.AddVehicleJourney(jp, "jkl", hm(20, 0), offsets(0, hm(5, 0), hm(5, 10)), 0x7f, pkg.VJA_NONE)
			tt, err := b.Build()
			require.NoError(t, err)

			r := newTestRouter(t, tt)
			req := newTestRequest(da.STOP_NONE, stopL, at(21, 0))
			req.FromEntries = tc.entries

			plan, err := r.RouteFirstDeparture(req)
			require.NoError(t, err)
			assert.Equal(t, tc.rides, rides(plan))
			arrivals := make([]da.Rtime, 0, len(plan.Itineraries))
			for i := range plan.Itineraries {
				arrivals = append(arrivals, plan.Itineraries[i].Arrival())
			}
			assert.Equal(t, tc.arrivals, arrivals)
		})
	}
}
