package routing

import (
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"go.uber.org/zap"
)

// flagJourneyPatternsForStopPoint marks the journey patterns serving sp for the next round when they run on
// one of the search's days and match the requested modes. banned patterns are never flagged.
func (r *Router) flagJourneyPatternsForStopPoint(req *Request, sp da.Index) {
	for _, jp := range r.tt.JourneyPatternsForStopPoint(sp) {
		if req.isBannedJourneyPattern(jp) {
			continue
		}
		if r.dayMask&r.tt.JourneyPatternActive(jp) == 0 {
			continue
		}
		if req.Mode&r.tt.GetJourneyPattern(jp).GetMode() == 0 {
			continue
		}
		r.updatedJourneyPatterns.Set(jp)
	}
}

func (r *Router) unflagBannedStopPoints(req *Request) {
	for i := uint8(0); i < req.NBannedStopPoints; i++ {
		if sp := req.BannedStopPoints[i]; int(sp) < r.nStops {
			r.updatedStopPoints.Unset(sp)
		}
	}
}

// walkResult moves t by d ticks in search direction. ok is false when the result leaves the three day
// window or wraps around.
func walkResult(req *Request, t da.Rtime, d int32) (da.Rtime, bool) {
	v := int32(t) + d
	if req.ArriveBy {
		v = int32(t) - d
	}
	if v < 0 || v > int32(da.RTIME_THREE_DAYS) {
		return da.UNREACHED, false
	}
	return da.Rtime(v), true
}

// applyTransfers runs the walk phase of a round. every stop point touched by the ride phase keeps its
// own ride time plus the stop's wait time (or the exact time when initial), then footpaths relax the
// neighbours on strict improvement of their best time. the journey patterns of every stop whose walk time
// changed are flagged for the next round; both stop bitsets are cleared.
func (r *Router) applyTransfers(req *Request, round int, transfer, initial bool) {
	walkSlack := int32(da.SecToRtime(uint32(req.WalkSlack)))

	r.updatedJourneyPatterns.Clear()
	r.updatedStopPoints.ForEach(func(spFrom da.Index) {
		i := r.state.idx(round, spFrom)
		timeFrom := r.state.time[i]
		if timeFrom == da.UNREACHED {
			r.logger.Warn("transferring from an unreached stop point", zap.Uint32("stop_point", uint32(spFrom)),
				zap.Int("round", round))
			return
		}

		if timeFrom == r.state.bestTime[spFrom] {
			walk := timeFrom
			if !initial {
				wait := int32(r.tt.StopPointWaitTime(spFrom))
				if t, ok := walkResult(req, timeFrom, wait); ok {
					walk = t
				}
			}
			r.state.walkTime[i] = walk
			r.state.walkFrom[i] = spFrom
			r.updatedWalkStopPoints.Set(spFrom)
		}

		if !transfer {
			return
		}
		for _, tr := range r.tt.TransfersForStopPoint(spFrom) {
			spTo := tr.GetTarget()
			duration := int32(tr.WalkDuration(req.WalkSpeed)) + walkSlack
			timeTo, ok := walkResult(req, timeFrom, duration)
			if !ok {
				continue
			}
			best := r.state.bestTime[spTo]
			if best != da.UNREACHED && ((req.ArriveBy && timeTo <= best) || (!req.ArriveBy && timeTo >= best)) {
				continue
			}
			j := r.state.idx(round, spTo)
			r.state.walkTime[j] = timeTo
			r.state.walkFrom[j] = spFrom
			r.state.bestTime[spTo] = timeTo
			r.updatedWalkStopPoints.Set(spTo)
		}
	})

	r.updatedWalkStopPoints.ForEach(func(sp da.Index) {
		r.flagJourneyPatternsForStopPoint(req, sp)
	})

	r.updatedStopPoints.Clear()
	r.updatedWalkStopPoints.Clear()
}
