package routing

import (
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

// stopTime returns the arrival (arrive=true) or departure time of a vehicle journey at a journey pattern
// point on the given service day, with the realtime delay applied on the realtime day.
// UNREACHED when the time does not fit in the search window.
func (r *Router) stopTime(sd *serviceDay, jp, vjOffset da.Index, jpp int, arrive bool) da.Rtime {
	vj := r.tt.GetVehicleJourney(jp, vjOffset)
	st := r.tt.TimeDemandType(jp, vjOffset)[jpp]

	t := int32(vj.GetBeginTime()) + int32(sd.midnight)
	if arrive {
		t += int32(st.GetArrival())
	} else {
		t += int32(st.GetDeparture())
	}
	if sd.applyRealtime {
		t += vj.GetDelay()
	}
	if t < 0 || t >= int32(da.UNREACHED) {
		return da.UNREACHED
	}
	return da.Rtime(t)
}

func (r *Router) appliedDelay(sd *serviceDay, jp, vjOffset da.Index) int32 {
	if !sd.applyRealtime {
		return 0
	}
	return r.tt.GetVehicleJourney(jp, vjOffset).GetDelay()
}

// usableVehicleJourney reports whether vj may be boarded on service day sd.
func (r *Router) usableVehicleJourney(req *Request, sd *serviceDay, jp, vjOffset da.Index, masks []uint32,
	vjs []da.VehicleJourney) bool {
	if req.isBannedVehicleJourney(jp, vjOffset) {
		return false
	}
	if sd.mask&masks[vjOffset] == 0 {
		return false
	}
	attrs := vjs[vjOffset].GetAttributes()
	if req.VJAttributes != 0 && req.VJAttributes&attrs != req.VJAttributes {
		return false
	}
	return !vjs[vjOffset].IsCanceled()
}

// dayCannotServe reports whether no trip of the pattern can be boarded at prevTime on day sd.
func dayCannotServe(req *Request, sd *serviceDay, jp *da.JourneyPattern, prevTime da.Rtime) bool {
	if req.ArriveBy {
		return uint32(prevTime) < uint32(sd.midnight)+uint32(jp.GetMinTime())
	}
	return uint32(prevTime) > uint32(sd.midnight)+uint32(jp.GetMaxTime())
}

func improves(req *Request, t, prevTime, bestTime da.Rtime) bool {
	if req.ArriveBy {
		return t <= prevTime && t > bestTime
	}
	return t >= prevTime && t < bestTime
}

// boardVehicleJourney looks for the best trip of journey pattern jp to board at point jpp when nothing
// is boarded yet. trips are scanned from the best candidate onwards (first departure for depart-after,
// last arrival for arrive-by) over the service days in search order.
// returns the service day index, trip offset and time; vj is NONE when nothing can be boarded.
func (r *Router) boardVehicleJourney(req *Request, jpIdx da.Index, jpp int, prevTime da.Rtime) (int, da.Index, da.Rtime) {
	jp := r.tt.GetJourneyPattern(jpIdx)
	masks := r.tt.VJMasksForJourneyPattern(jpIdx)
	vjs := r.tt.VehicleJourneysInJourneyPattern(jpIdx)
	overlap := jp.Overlaps()
	cutoff := req.effectiveCutoff()
	nVJs := int(jp.GetNumberOfVehicleJourneys())

	bestDay, bestVJ, bestTime := -1, da.NONE, da.UNREACHED
	if req.ArriveBy {
		bestTime = 0
	}

	for d := 0; d < r.nServicedays; d++ {
		sd := &r.servicedays[d]
		if dayCannotServe(req, sd, jp, prevTime) {
			continue
		}
		// trips are FIFO within a day, later days can only help when the pattern crosses midnight
		if bestVJ != da.NONE && !overlap {
			break
		}

		for i := 0; i < nVJs; i++ {
			vjOffset := da.Index(i)
			if req.ArriveBy {
				vjOffset = da.Index(nVJs - 1 - i)
			}
			if !r.usableVehicleJourney(req, sd, jpIdx, vjOffset, masks, vjs) {
				continue
			}
			t := r.stopTime(sd, jpIdx, vjOffset, jpp, req.ArriveBy)
			if t == da.UNREACHED {
				continue
			}
			if (req.ArriveBy && t < cutoff) || (!req.ArriveBy && t > cutoff) {
				return bestDay, bestVJ, bestTime
			}
			if improves(req, t, prevTime, bestTime) {
				bestDay, bestVJ, bestTime = d, vjOffset, t
				if !overlap || (t >= da.RTIME_ONE_DAY && jp.GetMinTime() > t-da.RTIME_ONE_DAY) {
					return bestDay, bestVJ, bestTime
				}
			}
		}
	}
	return bestDay, bestVJ, bestTime
}

// reboardVehicleJourney tries to improve on the trip boarded earlier on this pattern. starting at the held
// trip it scans toward better trips (earlier for depart-after, later for arrive-by) and toward earlier
// service days in search order.
func (r *Router) reboardVehicleJourney(req *Request, jpIdx da.Index, jpp int, heldDay int, heldVJ da.Index,
	prevTime da.Rtime) (int, da.Index, da.Rtime) {
	jp := r.tt.GetJourneyPattern(jpIdx)
	masks := r.tt.VJMasksForJourneyPattern(jpIdx)
	vjs := r.tt.VehicleJourneysInJourneyPattern(jpIdx)
	nVJs := int(jp.GetNumberOfVehicleJourneys())

	bestDay, bestVJ, bestTime := -1, da.NONE, da.UNREACHED
	if req.ArriveBy {
		bestTime = 0
	}

	start := int(heldVJ)
	for d := heldDay; d >= 0; d-- {
		sd := &r.servicedays[d]
		if dayCannotServe(req, sd, jp, prevTime) {
			if req.ArriveBy {
				start = 0
			} else {
				start = nVJs - 1
			}
			continue
		}

		step := -1
		if req.ArriveBy {
			step = 1
		}
		for i := start; i >= 0 && i < nVJs; i += step {
			vjOffset := da.Index(i)
			if !r.usableVehicleJourney(req, sd, jpIdx, vjOffset, masks, vjs) {
				continue
			}
			t := r.stopTime(sd, jpIdx, vjOffset, jpp, req.ArriveBy)
			if t == da.UNREACHED {
				continue
			}
			if (req.ArriveBy && t > prevTime) || (!req.ArriveBy && t < prevTime) {
				return bestDay, bestVJ, bestTime
			}
			if improves(req, t, prevTime, bestTime) {
				bestDay, bestVJ, bestTime = d, vjOffset, t
			}
		}

		if req.ArriveBy {
			start = 0
		} else {
			start = nVJs - 1
		}
	}
	return bestDay, bestVJ, bestTime
}
