package controllers

import (
	"context"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/http/usecases"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
)

type PlannerService interface {
	Plan(ctx context.Context, q usecases.PlanQuery) (*routing.Plan, error)
	NearbyStops(lat, lon, radius float64) []spatialindex.StopCandidate
	GetTimetable() *da.Timetable
}
