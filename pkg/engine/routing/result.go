package routing

import (
	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
	"go.uber.org/zap"
)

func (r *Router) walkLeg(iWalk, iRide int, walkStop da.Index) Leg {
	return newWalkLeg(r.state.walkFrom[iWalk], walkStop, r.state.time[iRide], r.state.walkTime[iWalk])
}

func (r *Router) rideLeg(iRide int, rideStop da.Index) Leg {
	return Leg{
		JourneyPattern: r.state.backJP[iRide],
		VehicleJourney: r.state.backVJ[iRide],
		From:           r.state.rideFrom[iRide],
		To:             rideStop,
		T0:             r.state.boardTime[iRide],
		T1:             r.state.time[iRide],
		D0:             da.RtimeTicksToSec(r.state.boardDelay[iRide]),
		D1:             da.RtimeTicksToSec(r.state.alightDelay[iRide]),
		JPP0:           r.state.boardJPP[iRide],
		JPP1:           r.state.alightJPP[iRide],
	}
}

// leadingWalk is the walk out of the search origin to the stop the first ride boards at. it is not stored
// in the round state, the origin time and the walk duration are enough to rebuild it.
func (r *Router) leadingWalk(req *Request, sp da.Index) Leg {
	from := req.originStop()
	var duration da.Rtime
	if from == da.STOP_NONE {
		duration, _ = entryWalk(req.originEntries(), sp)
	} else {
		duration = r.tt.TransferDuration(from, sp, req.WalkSpeed, da.SecToRtime(uint32(req.WalkSlack)))
		if duration == da.UNREACHED {
			duration = 0
		}
	}
	t1, ok := walkResult(req, r.originTime, int32(duration))
	if !ok {
		t1 = r.originTime
	}
	leg := newWalkLeg(from, sp, r.originTime, t1)
	if req.ArriveBy {
		leg.swap()
	}
	return leg
}

// ResultToPlan turns the state of the last search into one itinerary per round that reached the target
// and appends them to plan. the invariants of the new itineraries are checked and violations logged.
func (r *Router) ResultToPlan(plan *Plan, req *Request) error {
	plan.Req = *req
	first := len(plan.Itineraries)
	if r.target == da.STOP_NONE {
		return util.WrapErrorf(ErrTargetNotInitialised, util.ErrInternalServerError, "result")
	}

	for round := 0; round < pkg.MAX_ROUNDS; round++ {
		if r.state.walkTime[r.state.idx(round, r.target)] == da.UNREACHED {
			continue
		}
		it, err := r.itinerary(req, round)
		if err != nil {
			return err
		}
		plan.Itineraries = append(plan.Itineraries, it)
	}

	for _, d := range CheckPlanInvariants(plan, first) {
		r.logger.Warn("plan invariant violated", zap.String("detail", d))
	}
	return nil
}

// itinerary follows the back-pointers of the given round from the target to the origin.
func (r *Router) itinerary(req *Request, round int) (Itinerary, error) {
	nRides := round + 1
	legs := make([]Leg, 2*nRides+1)

	// arrive-by fills the legs from the front, depart-after from the back
	slot, step := len(legs)-1, -1
	if req.ArriveBy {
		slot, step = 0, 1
	}
	put := func(l Leg) {
		if req.ArriveBy {
			l.swap()
		}
		legs[slot] = l
		slot += step
	}

	sp := r.target
	for j := round; j >= 0; j-- {
		if int(sp) >= r.nStops {
			return Itinerary{}, util.WrapErrorf(nil, util.ErrInternalServerError,
				"result: stop point %d out of range in round %d", sp, j)
		}
		iWalk := r.state.idx(j, sp)
		if r.state.walkTime[iWalk] == da.UNREACHED {
			return Itinerary{}, util.WrapErrorf(nil, util.ErrInternalServerError,
				"result: stop point %d was not reached by walking in round %d", sp, j)
		}
		walkStop := sp
		sp = r.state.walkFrom[iWalk]

		iRide := r.state.idx(j, sp)
		if r.state.time[iRide] == da.UNREACHED {
			return Itinerary{}, util.WrapErrorf(nil, util.ErrInternalServerError,
				"result: stop point %d was not reached by riding in round %d", sp, j)
		}
		rideStop := sp
		sp = r.state.rideFrom[iRide]

		put(r.walkLeg(iWalk, iRide, walkStop))
		put(r.rideLeg(iRide, rideStop))
	}

	if r.onboard {
		legs[0] = newWalkLeg(da.ONBOARD, da.ONBOARD, req.Time, req.Time)
		legs[1].From = da.ONBOARD
		legs[1].T0 = req.Time
	} else {
		legs[slot] = r.leadingWalk(req, sp)
	}
	return Itinerary{NRides: nRides, Legs: legs}, nil
}
