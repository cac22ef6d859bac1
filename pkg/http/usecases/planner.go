package usecases

import (
	"context"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
	"github.com/lintang-b-s/transitx/pkg/util"
	"go.uber.org/zap"
)

// Place is a stop point or stop area id or, when StopID is empty, a coordinate.
type Place struct {
	StopID string
	Lat    float64
	Lon    float64
}

type PlanQuery struct {
	From         Place
	To           Place
	Via          string
	Time         time.Time
	ArriveBy     bool
	MaxTransfers int
	WalkSpeed    float64
	Mode         pkg.TransportMode
	Optimise     pkg.Optimise
	Strategy     routing.Strategy
	Wheelchair   bool
}

type PlannerService struct {
	log      *zap.Logger
	engine   PlanEngine
	resolver *Resolver
}

func NewPlannerService(log *zap.Logger, engine PlanEngine, resolver *Resolver) *PlannerService {
	return &PlannerService{
		log:      log,
		engine:   engine,
		resolver: resolver,
	}
}

func (ps *PlannerService) GetTimetable() *da.Timetable {
	return ps.engine.GetTimetable()
}

// Plan builds a search request out of q and runs it.
func (ps *PlannerService) Plan(ctx context.Context, q PlanQuery) (*routing.Plan, error) {
	req, err := ps.BuildRequest(q)
	if err != nil {
		return nil, err
	}

	plan, err := ps.engine.Plan(ctx, req, q.Strategy)
	if err != nil {
		return nil, err
	}
	ps.log.Debug("plan", zap.String("request", req.Dump(ps.engine.GetTimetable())),
		zap.Int("itineraries", len(plan.Itineraries)))
	return plan, nil
}

func (ps *PlannerService) BuildRequest(q PlanQuery) (routing.Request, error) {
	tt := ps.engine.GetTimetable()

	req := routing.NewRequestFromEpoch(tt, q.Time)
	req.ArriveBy = q.ArriveBy
	req.MaxTransfers = uint8(q.MaxTransfers)
	req.WalkSpeed = q.WalkSpeed
	req.Mode = q.Mode
	req.Optimise = q.Optimise
	if q.Wheelchair {
		req.VJAttributes |= pkg.VJA_ACCESSIBLE
	}

	var err error
	if req.From, req.FromEntries, err = ps.resolve(q.From, &req); err != nil {
		return req, err
	}
	if req.To, req.ToEntries, err = ps.resolve(q.To, &req); err != nil {
		return req, err
	}
	if q.Via != "" {
		via, ok := tt.StopPointIndex(q.Via)
		if !ok {
			return req, util.WrapErrorf(nil, util.ErrNotFound, "via stop point %q not found", q.Via)
		}
		req.Via = via
	}
	return req, nil
}

func (ps *PlannerService) resolve(p Place, req *routing.Request) (da.Index, []routing.WeightedStop, error) {
	if p.StopID != "" {
		tt := ps.engine.GetTimetable()
		if sp, ok := tt.StopPointIndex(p.StopID); ok {
			return sp, nil, nil
		}
		sa, ok := tt.StopAreaIndex(p.StopID)
		if !ok {
			return da.STOP_NONE, nil, util.WrapErrorf(nil, util.ErrNotFound, "stop point %q not found", p.StopID)
		}
		entries, err := AreaEntrySet(tt, sa, req)
		if err != nil {
			return da.STOP_NONE, nil, err
		}
		return da.STOP_NONE, entries, nil
	}
	entries, err := ps.resolver.EntrySet(p.Lat, p.Lon, req)
	if err != nil {
		return da.STOP_NONE, nil, err
	}
	return da.STOP_NONE, entries, nil
}

func (ps *PlannerService) NearbyStops(lat, lon, radius float64) []spatialindex.StopCandidate {
	return ps.resolver.NearbyStops(lat, lon, radius)
}
