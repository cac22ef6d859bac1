package routing

import (
	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"go.uber.org/zap"
)

// rideCursor is the trip held while scanning one journey pattern.
type rideCursor struct {
	vj       da.Index // NONE when nothing is boarded
	day      int
	boardSP  da.Index
	boardJPP int
	time     da.Rtime
}

// attemptBoard decides whether the scan should look for a (better) trip at this point, given the walk
// time prevTime the previous round reached sp with.
func (r *Router) attemptBoard(req *Request, jp da.Index, jpp int, sp da.Index, cur *rideCursor,
	prevTime da.Rtime) bool {
	if cur.vj == da.NONE || req.Via == sp {
		return true
	}
	// a trip boarded at the via stop is kept
	if req.Via != da.STOP_NONE && req.Via == cur.boardSP {
		return false
	}
	vjTime := r.stopTime(&r.servicedays[cur.day], jp, cur.vj, jpp, req.ArriveBy)
	// a held trip that leaves the search window is kept, even when an earlier day's trip could be boarded here
	if vjTime == da.UNREACHED {
		return false
	}
	if req.ArriveBy {
		return prevTime > vjTime
	}
	return prevTime < vjTime
}

// round scans every flagged journey pattern once (the ride phase) and then applies transfers (the walk
// phase). round 0 reads the seed state of round 1.
func (r *Router) round(req *Request, round int) {
	prevRound := round - 1
	if round == 0 {
		prevRound = seedRound
	}
	targetBest := func() da.Rtime { return r.state.bestTime[r.target] }

	r.updatedJourneyPatterns.ForEach(func(jp da.Index) {
		points := r.tt.PointsForJourneyPattern(jp)
		attrs := r.tt.PointAttributesForJourneyPattern(jp)
		cur := rideCursor{vj: da.NONE, day: -1}

		n := len(points)
		for k := 0; k < n; k++ {
			jpp := k
			if req.ArriveBy {
				jpp = n - 1 - k
			}
			sp := points[jpp]
			forBoarding := attrs[jpp]&pkg.JPP_BOARDING != 0
			forAlighting := attrs[jpp]&pkg.JPP_ALIGHTING != 0

			if cur.vj != da.NONE {
				if (!forBoarding && req.ArriveBy) || (!forAlighting && !req.ArriveBy) {
					continue
				}
			} else if (!forBoarding && !req.ArriveBy) || (!forAlighting && req.ArriveBy) {
				continue
			}

			if req.isHardBannedStopPoint(sp) {
				cur.vj = da.NONE
				if r.hardBanPolicy == HardBanResetAndSkip {
					continue
				}
			}

			prevTime := r.state.walkTime[r.state.idx(prevRound, sp)]
			if prevTime != da.UNREACHED && r.attemptBoard(req, jp, jpp, sp, &cur, prevTime) {
				var day int
				var vj da.Index
				var t da.Rtime
				if cur.vj == da.NONE {
					day, vj, t = r.boardVehicleJourney(req, jp, jpp, prevTime)
				} else {
					day, vj, t = r.reboardVehicleJourney(req, jp, jpp, cur.day, cur.vj, prevTime)
				}
				if vj != da.NONE {
					if ((req.ArriveBy && t > req.Time) || (!req.ArriveBy && t < req.Time)) && !r.onboard {
						r.logger.Error("boarded before start time", zap.Uint32("journey_pattern", uint32(jp)),
							zap.Uint32("vehicle_journey", uint32(vj)), zap.Uint32("stop_point", uint32(sp)))
					} else {
						cur = rideCursor{vj: vj, day: day, boardSP: sp, boardJPP: jpp, time: t}
					}
				}
				continue
			}

			if cur.vj == da.NONE {
				continue
			}

			sd := &r.servicedays[cur.day]
			t := r.stopTime(sd, jp, cur.vj, jpp, !req.ArriveBy)
			if t == da.UNREACHED {
				continue
			}
			// target pruning, a later stop may still allow re-boarding
			if tb := targetBest(); tb != da.UNREACHED && ((req.ArriveBy && t < tb) || (!req.ArriveBy && t > tb)) {
				continue
			}
			if req.TimeCutoff != da.UNREACHED && ((req.ArriveBy && t < req.TimeCutoff) ||
				(!req.ArriveBy && t > req.TimeCutoff)) {
				continue
			}
			if best := r.state.bestTime[sp]; best != da.UNREACHED &&
				((req.ArriveBy && t <= best) || (!req.ArriveBy && t >= best)) {
				continue
			}
			if t > da.RTIME_THREE_DAYS {
				continue
			}
			// overnight trips of the last day can wrap around
			if (req.ArriveBy && t > req.Time) || (!req.ArriveBy && t < req.Time) {
				continue
			}

			r.writeState(round, jp, sp, jpp, t, &cur)
			r.updatedStopPoints.Set(sp)
		}
	})

	r.unflagBannedStopPoints(req)
	r.applyTransfers(req, round, true, false)

	if round == 0 {
		r.state.resetRound(seedRound)
	}
}

func (r *Router) writeState(round int, jp, sp da.Index, jpp int, t da.Rtime, cur *rideCursor) {
	i := r.state.idx(round, sp)
	sd := &r.servicedays[cur.day]
	delay := r.appliedDelay(sd, jp, cur.vj)

	r.state.bestTime[sp] = t
	r.state.time[i] = t
	r.state.backJP[i] = jp
	r.state.backVJ[i] = cur.vj
	r.state.rideFrom[i] = cur.boardSP
	r.state.boardTime[i] = cur.time
	r.state.boardJPP[i] = uint16(cur.boardJPP)
	r.state.alightJPP[i] = uint16(jpp)
	r.state.boardDelay[i] = delay
	r.state.alightDelay[i] = delay
}
