package usecases

import (
	"context"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
)

type PlanEngine interface {
	Plan(ctx context.Context, req routing.Request, strategy routing.Strategy) (*routing.Plan, error)
	GetTimetable() *da.Timetable
}

type SpatialIndex interface {
	SearchWithinRadius(float64, float64, float64) []spatialindex.StopCandidate
}
