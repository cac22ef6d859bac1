package routing

import (
	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
)

func betterTime(req *Request, a, b da.Rtime) bool {
	if b == da.UNREACHED {
		return a != da.UNREACHED
	}
	if a == da.UNREACHED {
		return false
	}
	if req.ArriveBy {
		return a > b
	}
	return a < b
}

// withEntryWalk moves a time at an exit stop by the walk to the destination coordinate.
func withEntryWalk(req *Request, t, walk da.Rtime) da.Rtime {
	if t == da.UNREACHED {
		return da.UNREACHED
	}
	v, ok := walkResult(req, t, int32(walk))
	if !ok {
		return da.UNREACHED
	}
	return v
}

// bestExitEntry picks the exit entry with the best time at the destination coordinate,
// the best time at the stop plus the walk out of it.
func (r *Router) bestExitEntry(req *Request, timeAt func(sp da.Index) da.Rtime) (da.Index, da.Rtime) {
	bestSP, best := da.STOP_NONE, da.UNREACHED
	for _, e := range req.targetEntries() {
		t := withEntryWalk(req, timeAt(e.Stop), e.Walk)
		if betterTime(req, t, best) {
			bestSP, best = e.Stop, t
		}
	}
	return bestSP, best
}

func reverseRequest(req *Request, round int, sp da.Index, t da.Rtime) {
	req.setTargetStop(sp)
	req.TimeCutoff = req.Time
	req.Time = t
	req.MaxTransfers = uint8(round)
	req.ArriveBy = !req.ArriveBy
}

// ReverseRequest turns req into the opposite direction search anchored at the destination of the last
// search: time becomes the destination time of the round with the most transfers (the fewest when
// optimising for transfers), the old time becomes the cutoff. req is unchanged when the destination was
// not reached.
func (r *Router) ReverseRequest(req *Request) error {
	maxTransfers := util.MinInt(int(req.MaxTransfers), pkg.MAX_ROUNDS-1)

	bestSP := req.targetStop()
	if bestSP == da.STOP_NONE {
		bestSP, _ = r.bestExitEntry(req, func(sp da.Index) da.Rtime { return r.state.bestTime[sp] })
		if bestSP == da.STOP_NONE {
			return util.WrapErrorf(ErrNoAnchor, util.ErrNotFound, "reverse")
		}
	}

	round := -1
	for rr := 0; rr <= maxTransfers; rr++ {
		if r.state.walkTime[r.state.idx(rr, bestSP)] != da.UNREACHED {
			round = rr
			if req.Optimise == pkg.OPTIMISE_TRANSFERS {
				break
			}
		}
	}
	if round < 0 {
		return util.WrapErrorf(ErrNoAnchor, util.ErrNotFound, "reverse")
	}

	reverseRequest(req, round, bestSP, r.state.walkTime[r.state.idx(round, bestSP)])
	return nil
}

// bestExitEntryByRound is bestExitEntry for the journeys of one round. ok is false when nothing was reached
// or the round does not improve on the previous one.
func (r *Router) bestExitEntryByRound(req *Request, round int) (da.Index, da.Rtime, bool) {
	bestSP, best := r.bestExitEntry(req, func(sp da.Index) da.Rtime { return r.state.arrivalAt(round, sp) })
	if bestSP == da.STOP_NONE {
		return da.STOP_NONE, da.UNREACHED, false
	}
	if round > 0 {
		walk, _ := entryWalk(req.targetEntries(), bestSP)
		prev := withEntryWalk(req, r.state.arrivalAt(round-1, bestSP), walk)
		if prev != da.UNREACHED && !betterTime(req, best, prev) {
			return da.STOP_NONE, da.UNREACHED, false
		}
	}
	return bestSP, r.state.arrivalAt(round, bestSP), true
}

// ReverseAll appends to out one reversed request per round (from the most transfers down) that reached the
// destination. depart-after requests produced by an arrive-by search that share their time with a request
// already in out are merged into it.
func (r *Router) ReverseAll(req *Request, out []Request) []Request {
	maxRound := util.MinInt(int(req.MaxTransfers), pkg.MAX_ROUNDS-1)

	if req.targetStop() == da.STOP_NONE {
		for round := maxRound; round >= 0; round-- {
			sp, t, ok := r.bestExitEntryByRound(req, round)
			if !ok {
				continue
			}
			rev := *req
			reverseRequest(&rev, round, sp, t)
			out = append(out, rev)
		}
		return out
	}

	sp := req.targetStop()
	for round := maxRound; round >= 0; round-- {
		t := r.state.arrivalAt(round, sp)
		if t == da.UNREACHED {
			continue
		}
		rev := *req
		reverseRequest(&rev, round, sp, t)

		merged := false
		if !rev.ArriveBy {
			for j := range out {
				if !out[j].ArriveBy && out[j].Time == rev.Time {
					out[j].MaxTransfers = max(out[j].MaxTransfers, rev.MaxTransfers)
					out[j].TimeCutoff = max(out[j].TimeCutoff, rev.TimeCutoff)
					merged = true
					break
				}
			}
		}
		if !merged {
			out = append(out, rev)
		}
	}
	return out
}
