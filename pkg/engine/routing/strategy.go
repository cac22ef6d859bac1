package routing

import (
	"context"
	"errors"
	"sort"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
	"go.uber.org/zap"
)

// Strategy selects how many searches are run for one request.
type Strategy uint8

const (
	// one search, the first departure wins even when waiting could be shortened
	STRATEGY_FIRST_DEPARTURE Strategy = iota
	// compress the best itinerary by searching back from its arrival
	STRATEGY_NAIVE_REVERSAL
	// compress every itinerary of the first search
	STRATEGY_FULL_REVERSAL
)

func GetStrategy(s string) (Strategy, bool) {
	switch s {
	case "first", "":
		return STRATEGY_FIRST_DEPARTURE, true
	case "naive":
		return STRATEGY_NAIVE_REVERSAL, true
	case "full":
		return STRATEGY_FULL_REVERSAL, true
	default:
		return 0, false
	}
}

func (s Strategy) String() string {
	switch s {
	case STRATEGY_NAIVE_REVERSAL:
		return "naive"
	case STRATEGY_FULL_REVERSAL:
		return "full"
	default:
		return "first"
	}
}

// Plan runs req with the given strategy.
func (r *Router) Plan(ctx context.Context, req Request, strategy Strategy) (*Plan, error) {
	switch strategy {
	case STRATEGY_NAIVE_REVERSAL:
		return r.RouteNaiveReversal(ctx, req)
	case STRATEGY_FULL_REVERSAL:
		return r.RouteFullReversal(ctx, req)
	default:
		return r.RouteFirstDeparture(req)
	}
}

// RouteFirstDeparture runs a single search. it is also the only sensible strategy for on-board requests.
func (r *Router) RouteFirstDeparture(req Request) (*Plan, error) {
	if err := r.Route(&req); err != nil {
		return nil, err
	}
	plan := NewPlan(req)
	if err := r.ResultToPlan(plan, &req); err != nil {
		return nil, err
	}
	return plan, nil
}

func canceled(ctx context.Context) error {
	if util.StopConcurrentOperation(ctx) {
		return ctx.Err()
	}
	return nil
}

// RouteNaiveReversal searches, then searches back from the best arrival to find the latest departure that
// still makes it, and for depart-after requests searches forward once more from that departure.
// when a reversal finds nothing to anchor on, the plan of the first search is returned.
func (r *Router) RouteNaiveReversal(ctx context.Context, req Request) (*Plan, error) {
	if err := r.Route(&req); err != nil {
		return nil, err
	}
	initial := NewPlan(req)
	if err := r.ResultToPlan(initial, &req); err != nil {
		return nil, err
	}

	nReversals := 2
	if req.ArriveBy {
		nReversals = 1
	}
	for i := 0; i < nReversals; i++ {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		if err := r.ReverseRequest(&req); err != nil {
			if errors.Is(err, ErrNoAnchor) {
				return initial, nil
			}
			return nil, err
		}
		if err := r.Route(&req); err != nil {
			return nil, err
		}
	}

	plan := NewPlan(req)
	if err := r.ResultToPlan(plan, &req); err != nil {
		return nil, err
	}
	return plan, nil
}

// reversalJob is a forward search produced by a reversal. rounds has bit i set for every round whose
// itinerary the search was started for; merged duplicates add their rounds.
type reversalJob struct {
	req     Request
	rounds  uint32
	virtual bool // already answered by the first search
}

func (r *Router) collectRounds(req *Request, rounds uint32, into *[]Itinerary) error {
	plan := NewPlan(*req)
	if err := r.ResultToPlan(plan, req); err != nil {
		return err
	}
	for _, it := range plan.Itineraries {
		if rounds&(1<<uint(it.NRides-1)) != 0 {
			*into = append(*into, it)
		}
	}
	return nil
}

// addJobs merges reversed forward requests into jobs. requests departing at the time of an existing job
// widen that job instead of adding a search.
func addJobs(jobs []reversalJob, reqs []Request) []reversalJob {
	for _, rev := range reqs {
		bit := uint32(1) << rev.MaxTransfers
		merged := false
		for j := range jobs {
			if jobs[j].req.ArriveBy == rev.ArriveBy && jobs[j].req.Time == rev.Time {
				jobs[j].req.MaxTransfers = max(jobs[j].req.MaxTransfers, rev.MaxTransfers)
				jobs[j].req.TimeCutoff = max(jobs[j].req.TimeCutoff, rev.TimeCutoff)
				jobs[j].rounds |= bit
				merged = true
				break
			}
		}
		if !merged {
			jobs = append(jobs, reversalJob{req: rev, rounds: bit})
		}
	}
	return jobs
}

// RouteFullReversal compresses every itinerary of the first search: one search back per reached round,
// and for depart-after requests one search forward per distinct compressed departure.
// the result keeps per number of rides the best itinerary, pareto filtered over the rides.
func (r *Router) RouteFullReversal(ctx context.Context, req Request) (*Plan, error) {
	if err := r.Route(&req); err != nil {
		return nil, err
	}
	initial := NewPlan(req)
	if err := r.ResultToPlan(initial, &req); err != nil {
		return nil, err
	}

	jobs := make([]reversalJob, 0, 2*len(initial.Itineraries))
	if !req.ArriveBy {
		for _, it := range initial.Itineraries {
			v := req
			v.Time = it.Departure()
			v.MaxTransfers = uint8(it.NRides - 1)
			jobs = append(jobs, reversalJob{req: v, rounds: 1 << uint(it.NRides-1), virtual: true})
		}
	}

	seed := req
	if !req.ArriveBy {
		if t, ok := r.EarliestBoardTime(); ok {
			seed.Time = t
		}
	}
	firstLevel := r.ReverseAll(&seed, nil)

	var itineraries []Itinerary
	if req.ArriveBy {
		jobs = addJobs(jobs, firstLevel)
	} else {
		for i := range firstLevel {
			if err := canceled(ctx); err != nil {
				return nil, err
			}
			back := firstLevel[i]
			if err := r.Route(&back); err != nil {
				r.logger.Debug("reversed search failed", zap.Error(err))
				continue
			}
			jobs = addJobs(jobs, r.ReverseAll(&back, nil))
		}
	}

	for i := range jobs {
		if jobs[i].virtual {
			continue
		}
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		if err := r.Route(&jobs[i].req); err != nil {
			r.logger.Debug("compressed search failed", zap.Error(err))
			continue
		}
		if err := r.collectRounds(&jobs[i].req, jobs[i].rounds, &itineraries); err != nil {
			return nil, err
		}
	}

	if len(itineraries) == 0 {
		return initial, nil
	}
	if !req.ArriveBy {
		itineraries = append(itineraries, initial.Itineraries...)
	}

	plan := NewPlan(req)
	plan.Itineraries = paretoFront(itineraries, req.ArriveBy)
	for _, d := range CheckPlanInvariants(plan, 0) {
		r.logger.Warn("plan invariant violated", zap.String("detail", d))
	}
	return plan, nil
}

// paretoFront keeps per number of rides the itinerary with the best time at the target, the earliest
// arrival or for arrive-by the latest departure, then drops itineraries that do not strictly improve on one
// with fewer rides.
func paretoFront(its []Itinerary, arriveBy bool) []Itinerary {
	target := func(it *Itinerary) da.Rtime {
		if arriveBy {
			return it.Departure()
		}
		return it.Arrival()
	}
	better := func(a, b da.Rtime) bool {
		if arriveBy {
			return a > b
		}
		return a < b
	}

	sort.SliceStable(its, func(i, j int) bool {
		if its[i].NRides != its[j].NRides {
			return its[i].NRides < its[j].NRides
		}
		ti, tj := target(&its[i]), target(&its[j])
		if ti != tj {
			return better(ti, tj)
		}
		if arriveBy {
			return its[i].Arrival() < its[j].Arrival()
		}
		return its[i].Departure() > its[j].Departure()
	})

	out := make([]Itinerary, 0, len(its))
	for i := range its {
		if i > 0 && its[i].NRides == its[i-1].NRides {
			continue
		}
		if len(out) > 0 && !better(target(&its[i]), target(&out[len(out)-1])) {
			continue
		}
		out = append(out, its[i])
	}
	return out
}
