package routing

import (
	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

// roundState is the per (round, stop point) scratch memory of a search. every array is one flat
// MAX_ROUNDS x nStops block, entry (round, sp) lives at round*nStops+sp.
// back-pointers (walkFrom, rideFrom) are stop indices into the same or the previous round.
type roundState struct {
	nStops int

	time      []da.Rtime // arrival (or departure for arrive-by) of the ride ending at the stop
	walkTime  []da.Rtime // time at the stop after the walk phase of the round
	walkFrom  []da.Index // stop the walk phase started from
	rideFrom  []da.Index // stop the ride started from
	backJP    []da.Index
	backVJ    []da.Index
	boardTime []da.Rtime

	boardJPP    []uint16 // journey pattern point offsets of the ride
	alightJPP   []uint16
	boardDelay  []int32 // realtime delay in ticks applied at boarding and at alighting
	alightDelay []int32

	bestTime []da.Rtime // best known time per stop over all rounds
}

func newRoundState(nStops int) roundState {
	n := pkg.MAX_ROUNDS * nStops
	return roundState{
		nStops:      nStops,
		time:        make([]da.Rtime, n),
		walkTime:    make([]da.Rtime, n),
		walkFrom:    make([]da.Index, n),
		rideFrom:    make([]da.Index, n),
		backJP:      make([]da.Index, n),
		backVJ:      make([]da.Index, n),
		boardTime:   make([]da.Rtime, n),
		boardJPP:    make([]uint16, n),
		alightJPP:   make([]uint16, n),
		boardDelay:  make([]int32, n),
		alightDelay: make([]int32, n),
		bestTime:    make([]da.Rtime, nStops),
	}
}

func (s *roundState) idx(round int, sp da.Index) int {
	return round*s.nStops + int(sp)
}

func (s *roundState) resetEntry(i int) {
	s.time[i] = da.UNREACHED
	s.walkTime[i] = da.UNREACHED
	s.walkFrom[i] = da.NONE
	s.rideFrom[i] = da.NONE
	s.backJP[i] = da.NONE
	s.backVJ[i] = da.NONE
	s.boardTime[i] = da.UNREACHED
	s.boardJPP[i] = 0
	s.alightJPP[i] = 0
	s.boardDelay[i] = 0
	s.alightDelay[i] = 0
}

func (s *roundState) reset() {
	for i := range s.time {
		s.resetEntry(i)
	}
	for i := range s.bestTime {
		s.bestTime[i] = da.UNREACHED
	}
}

func (s *roundState) resetRound(round int) {
	base := round * s.nStops
	for i := base; i < base+s.nStops; i++ {
		s.resetEntry(i)
	}
}

// arrivalAt is the time a journey of the given round has at sp: the ride time unless the walk time is
// later. UNREACHED when the walk phase never reached sp.
func (s *roundState) arrivalAt(round int, sp da.Index) da.Rtime {
	i := s.idx(round, sp)
	t := s.time[i]
	if t == da.UNREACHED || t < s.walkTime[i] {
		return s.walkTime[i]
	}
	return t
}
