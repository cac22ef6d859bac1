package routing

import (
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
)

// round 1 holds the initial state for round 0 and is reset after round 0.
const seedRound = 1

func (r *Router) initOrigin(req *Request) error {
	if req.OnboardJourneyPattern != da.NONE && req.OnboardVJOffset != da.NONE {
		if req.ArriveBy {
			return util.WrapErrorf(ErrOnboardArriveBy, util.ErrBadParamInput, "router")
		}
		return r.initOriginOnboard(req)
	}
	if req.originStop() == da.STOP_NONE {
		return r.initOriginEntries(req)
	}
	return r.initOriginIndex(req)
}

// todayServiceDay is the service day of the request's own calendar day, whether or not the search
// window kept it.
func (r *Router) todayServiceDay(req *Request) serviceDay {
	return serviceDay{
		midnight:      da.RTIME_ONE_DAY,
		mask:          req.DayMask,
		applyRealtime: req.DayMask&r.realtimeMask() != 0,
	}
}

// initOriginOnboard starts the search at the last stop the vehicle departed from before req.Time.
// only the boarded journey pattern is flagged, the first round continues the ride.
func (r *Router) initOriginOnboard(req *Request) error {
	jp := req.OnboardJourneyPattern
	today := r.todayServiceDay(req)
	points := r.tt.PointsForJourneyPattern(jp)

	sp, stopTime := da.STOP_NONE, da.UNREACHED
	for jpp := range points {
		t := r.stopTime(&today, jp, req.OnboardVJOffset, jpp, false)
		if t == da.UNREACHED || t >= req.Time {
			continue
		}
		if stopTime == da.UNREACHED || t > stopTime {
			sp, stopTime = points[jpp], t
		}
	}
	if sp == da.STOP_NONE {
		return util.WrapErrorf(ErrOriginNotInitialised, util.ErrNotFound,
			"vehicle journey %d of journey pattern %d has not departed yet", req.OnboardVJOffset, jp)
	}

	r.onboard = true
	r.origin = sp
	r.originTime = req.Time
	r.state.bestTime[sp] = stopTime
	i := r.state.idx(seedRound, sp)
	r.state.time[i] = stopTime
	r.state.walkTime[i] = stopTime

	r.updatedStopPoints.Clear()
	r.updatedJourneyPatterns.Clear()
	r.updatedJourneyPatterns.Set(jp)
	return nil
}

func (r *Router) initOriginIndex(req *Request) error {
	r.origin = req.originStop()
	r.originTime = req.Time
	r.state.bestTime[r.origin] = req.Time

	i := r.state.idx(seedRound, r.origin)
	r.state.time[i] = req.Time
	r.state.rideFrom[i] = da.STOP_NONE
	r.state.backJP[i] = da.NONE
	r.state.backVJ[i] = da.NONE
	r.state.boardTime[i] = da.UNREACHED

	r.updatedStopPoints.Clear()
	r.updatedStopPoints.Set(r.origin)
	r.applyTransfers(req, seedRound, true, true)
	return nil
}

// initOriginEntries seeds every usable entry stop with the request time moved by its walk.
// the closest entry becomes the nominal origin.
func (r *Router) initOriginEntries(req *Request) error {
	r.updatedStopPoints.Clear()
	best := -1
	entries := req.originEntries()
	for k, e := range entries {
		if req.isBannedStopPoint(e.Stop) || req.isHardBannedStopPoint(e.Stop) {
			continue
		}
		t, ok := walkResult(req, req.Time, int32(e.Walk))
		if !ok {
			continue
		}
		i := r.state.idx(seedRound, e.Stop)
		r.state.bestTime[e.Stop] = t
		r.state.time[i] = t
		r.state.rideFrom[i] = da.STOP_NONE
		r.state.backJP[i] = da.NONE
		r.state.backVJ[i] = da.NONE
		r.state.boardTime[i] = da.UNREACHED
		r.updatedStopPoints.Set(e.Stop)

		if best < 0 || e.Walk < entries[best].Walk {
			best = k
		}
	}
	if best < 0 {
		return util.WrapErrorf(ErrOriginNotInitialised, util.ErrNotFound, "no usable stop point near the origin")
	}
	r.origin = entries[best].Stop
	r.originWalk = entries[best].Walk
	r.originTime = req.Time
	r.applyTransfers(req, seedRound, false, false)
	return nil
}

func (r *Router) initTarget(req *Request) error {
	if sp := req.targetStop(); sp != da.STOP_NONE {
		r.target = sp
		return nil
	}
	best := -1
	entries := req.targetEntries()
	for k, e := range entries {
		if best < 0 || e.Walk < entries[best].Walk {
			best = k
		}
	}
	if best < 0 {
		return util.WrapErrorf(ErrTargetNotInitialised, util.ErrNotFound, "no stop point near the destination")
	}
	r.target = entries[best].Stop
	r.targetWalk = entries[best].Walk
	return nil
}

// entryWalk is the walk between sp and the request's coordinate on the origin (or target) side, and
// whether sp belongs to that entry set.
func entryWalk(entries []WeightedStop, sp da.Index) (da.Rtime, bool) {
	for _, e := range entries {
		if e.Stop == sp {
			return e.Walk, true
		}
	}
	return 0, false
}
