package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrOriginNotInitialised = errors.New("search origin could not be initialised")
	ErrTargetNotInitialised = errors.New("search target could not be initialised")
	ErrOnboardArriveBy      = errors.New("an arrive-by search cannot start on board a vehicle")
	ErrNoAnchor             = errors.New("destination was not reached in any round")
)

// HardBanPolicy decides what happens at a hard banned stop point while scanning a journey pattern.
type HardBanPolicy uint8

const (
	// the boarded trip is dropped and the stop is skipped, nobody boards or alights there
	HardBanResetAndSkip HardBanPolicy = iota
	// the boarded trip is dropped but the stop may still be used to board
	HardBanResetOnly
)

// Router runs RAPTOR searches on one timetable. it owns all scratch memory of a search and must not be
// used by more than one goroutine at a time.
type Router struct {
	tt            *da.Timetable
	logger        *zap.Logger
	clock         func() time.Time
	hardBanPolicy HardBanPolicy

	nStops int
	state  roundState

	updatedStopPoints      *da.Bitset // stops improved by the ride phase of the current round
	updatedWalkStopPoints  *da.Bitset // stops improved by the walk phase of the current round
	updatedJourneyPatterns *da.Bitset // patterns to scan in the next round

	servicedays  [3]serviceDay
	nServicedays int
	dayMask      uint32

	origin     da.Index
	target     da.Index
	originTime da.Rtime
	originWalk da.Rtime // walk from an entry set origin to the origin stop
	targetWalk da.Rtime
	onboard    bool
	nRounds    int
}

type RouterOption func(*Router)

// WithClock sets the clock that decides which calendar day realtime delays apply to.
func WithClock(clock func() time.Time) RouterOption {
	return func(r *Router) {
		r.clock = clock
	}
}

func WithHardBanPolicy(policy HardBanPolicy) RouterOption {
	return func(r *Router) {
		r.hardBanPolicy = policy
	}
}

// NewRouter allocates the scratch memory for searches on tt.
func NewRouter(tt *da.Timetable, logger *zap.Logger, opts ...RouterOption) (*Router, error) {
	if tt == nil {
		return nil, util.WrapErrorf(nil, util.ErrInternalServerError, "router: timetable is nil")
	}
	if tt.NumberOfStopPoints() == 0 {
		return nil, util.WrapErrorf(nil, util.ErrInternalServerError, "router: timetable has no stop points")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nStops := tt.NumberOfStopPoints()
	r := &Router{
		tt:                     tt,
		logger:                 logger,
		clock:                  time.Now,
		hardBanPolicy:          HardBanResetAndSkip,
		nStops:                 nStops,
		state:                  newRoundState(nStops),
		updatedStopPoints:      da.NewBitset(da.Index(nStops)),
		updatedWalkStopPoints:  da.NewBitset(da.Index(nStops)),
		updatedJourneyPatterns: da.NewBitset(da.Index(tt.NumberOfJourneyPatterns())),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset()
	return r, nil
}

func (r *Router) GetTimetable() *da.Timetable {
	return r.tt
}

// Reset forgets the previous search. Route calls it itself.
func (r *Router) Reset() {
	r.origin = da.STOP_NONE
	r.target = da.STOP_NONE
	r.originTime = da.UNREACHED
	r.originWalk = 0
	r.targetWalk = 0
	r.onboard = false
	r.nRounds = 0
	r.state.reset()
	r.updatedStopPoints.Clear()
	r.updatedWalkStopPoints.Clear()
	r.updatedJourneyPatterns.Clear()
}

// Route runs the round based search for req. the request has to pass RangeCheck first.
func (r *Router) Route(req *Request) error {
	r.Reset()
	r.initServicedays(req)

	if err := r.initOrigin(req); err != nil {
		return err
	}
	if err := r.initTarget(req); err != nil {
		return err
	}

	nRounds := util.MinInt(int(req.MaxTransfers)+1, pkg.MAX_ROUNDS)
	for round := 0; round < nRounds; round++ {
		if round > 0 && r.updatedJourneyPatterns.Count() == 0 {
			break
		}
		r.round(req, round)
		r.nRounds = round + 1
	}
	return nil
}

// BestTime is the best time any round reached sp with.
func (r *Router) BestTime(sp da.Index) (da.Rtime, bool) {
	t := r.state.bestTime[sp]
	return t, t != da.UNREACHED
}

// WalkTime is the time at sp after the walk phase of the given round.
func (r *Router) WalkTime(round int, sp da.Index) (da.Rtime, bool) {
	t := r.state.walkTime[r.state.idx(round, sp)]
	return t, t != da.UNREACHED
}

// RideTime is the time the ride phase of the given round reached sp with.
func (r *Router) RideTime(round int, sp da.Index) (da.Rtime, bool) {
	t := r.state.time[r.state.idx(round, sp)]
	return t, t != da.UNREACHED
}

// EarliestBoardTime is the earliest boarding time of the first rides of the last search.
func (r *Router) EarliestBoardTime() (da.Rtime, bool) {
	best := da.UNREACHED
	for sp := 0; sp < r.nStops; sp++ {
		if t := r.state.boardTime[sp]; t < best {
			best = t
		}
	}
	return best, best != da.UNREACHED
}

func (r *Router) Origin() da.Index {
	return r.origin
}

func (r *Router) Target() da.Index {
	return r.target
}

func (r *Router) NumberOfRounds() int {
	return r.nRounds
}

func (r *Router) String() string {
	return fmt.Sprintf("router{stops: %d, origin: %d, target: %d, rounds: %d}", r.nStops, r.origin, r.target,
		r.nRounds)
}
