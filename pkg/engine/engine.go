package engine

import (
	"context"
	"sync"
	"time"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"github.com/lintang-b-s/transitx/pkg/util"
	"go.uber.org/zap"
)

// Engine serves journey plans on one timetable to any number of goroutines. every search borrows its own
// router from a pool. realtime updates mutate the timetable and wait until no search is running.
type Engine struct {
	tt      *da.Timetable
	routers sync.Pool
	rtMu    sync.RWMutex
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewEngine(tt *da.Timetable, logger *zap.Logger, collector *metrics.Collector,
	opts ...routing.RouterOption) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// the first router validates the timetable, the pool only allocates after that.
	first, err := routing.NewRouter(tt, logger, opts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		tt:      tt,
		logger:  logger,
		metrics: collector,
	}
	e.routers.New = func() any {
		r, _ := routing.NewRouter(tt, logger, opts...)
		return r
	}
	e.routers.Put(first)

	collector.SetTimetableSize(tt.NumberOfStopPoints(), tt.NumberOfJourneyPatterns())
	logger.Info("journey planner engine ready",
		zap.Int("stopPoints", tt.NumberOfStopPoints()),
		zap.Int("journeyPatterns", tt.NumberOfJourneyPatterns()),
		zap.Int("vehicleJourneys", tt.NumberOfVehicleJourneys()))
	return e, nil
}

func (e *Engine) GetTimetable() *da.Timetable {
	return e.tt
}

// Plan checks req and runs it with the given strategy. an empty plan is not an error.
func (e *Engine) Plan(ctx context.Context, req routing.Request, strategy routing.Strategy) (*routing.Plan, error) {
	start := time.Now()
	if err := req.RangeCheck(e.tt); err != nil {
		e.metrics.ObserveSearch(strategy.String(), metrics.RESULT_REJECTED, time.Since(start), 0)
		return nil, err
	}
	if util.StopConcurrentOperation(ctx) {
		return nil, ctx.Err()
	}

	r := e.routers.Get().(*routing.Router)
	defer e.routers.Put(r)

	e.rtMu.RLock()
	plan, err := r.Plan(ctx, req, strategy)
	e.rtMu.RUnlock()

	elapsed := time.Since(start)
	if err != nil {
		e.metrics.ObserveSearch(strategy.String(), metrics.RESULT_ERROR, elapsed, 0)
		return nil, err
	}

	result := metrics.RESULT_FOUND
	if len(plan.Itineraries) == 0 {
		result = metrics.RESULT_EMPTY
	}
	e.metrics.ObserveSearch(strategy.String(), result, elapsed, len(plan.Itineraries))
	e.logger.Debug("plan finished",
		zap.String("strategy", strategy.String()),
		zap.Int("itineraries", len(plan.Itineraries)),
		zap.Duration("elapsed", elapsed))
	return plan, nil
}

// UpdateRealtime runs fn with exclusive access to the timetable.
func (e *Engine) UpdateRealtime(fn func(tt *da.Timetable) error) error {
	e.rtMu.Lock()
	defer e.rtMu.Unlock()
	return fn(e.tt)
}
