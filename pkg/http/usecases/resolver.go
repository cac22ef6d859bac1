package usecases

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/geo"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
	"github.com/lintang-b-s/transitx/pkg/util"
)

// coordinates are cached on a ~1 meter grid
const coordinateGrid = 1e5

type resolverKey struct {
	lat, lon int64
	radius   float64
}

// Resolver turns coordinates into entry sets: the stop points around them with the walk needed to get there.
type Resolver struct {
	spatialIndex SpatialIndex
	cache        *lru.Cache[resolverKey, []spatialindex.StopCandidate]
	searchRadius float64 // km
}

func NewResolver(spatialIndex SpatialIndex, searchRadius float64, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[resolverKey, []spatialindex.StopCandidate](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		spatialIndex: spatialIndex,
		cache:        cache,
		searchRadius: searchRadius,
	}, nil
}

// NearbyStops returns the stop points within radius km of (lat, lon), closest first.
func (rs *Resolver) NearbyStops(lat, lon, radius float64) []spatialindex.StopCandidate {
	key := resolverKey{
		lat:    int64(math.Round(lat * coordinateGrid)),
		lon:    int64(math.Round(lon * coordinateGrid)),
		radius: radius,
	}
	if cands, ok := rs.cache.Get(key); ok {
		return cands
	}
	cands := rs.spatialIndex.SearchWithinRadius(lat, lon, radius)
	rs.cache.Add(key, cands)
	return cands
}

// EntrySet resolves (lat, lon) for req. banned stops and stops farther than the request's maximum walk
// distance are left out.
func (rs *Resolver) EntrySet(lat, lon float64, req *routing.Request) ([]routing.WeightedStop, error) {
	cands := rs.NearbyStops(lat, lon, rs.searchRadius)

	entries := make([]routing.WeightedStop, 0, len(cands))
	for _, c := range cands {
		if req.StopPointBanned(c.GetStopPoint()) {
			continue
		}
		if req.WalkMaxDistance > 0 && c.GetDistance() > float64(req.WalkMaxDistance) {
			continue
		}
		entries = append(entries, routing.NewWeightedStop(c.GetStopPoint(), walkDuration(c.GetDistance(), req.WalkSpeed)))
		if len(entries) == pkg.MAX_ENTRY_STOPS {
			break
		}
	}

	if len(entries) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "no stop point within walking distance of %f,%f", lat, lon)
	}
	return entries, nil
}

// AreaEntrySet resolves stop area sa into its member stop points, each weighted with the walk from the area's
// centroid. banned members are left out.
func AreaEntrySet(tt *da.Timetable, sa da.Index, req *routing.Request) ([]routing.WeightedStop, error) {
	area := tt.GetStopArea(sa)
	members := area.GetStopPoints()

	coords := make([]geo.Coordinate, len(members))
	for i, sp := range members {
		p := tt.GetStopPoint(sp)
		coords[i] = geo.NewCoordinate(p.GetLat(), p.GetLon())
	}
	center := geo.Centroid(coords)

	entries := make([]routing.WeightedStop, 0, len(members))
	for i, sp := range members {
		if req.StopPointBanned(sp) {
			continue
		}
		entries = append(entries, routing.NewWeightedStop(sp,
			walkDuration(geo.GreatCircleDistance(center, coords[i]), req.WalkSpeed)))
		if len(entries) == pkg.MAX_ENTRY_STOPS {
			break
		}
	}

	if len(entries) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "stop area %q has no usable stop point", area.GetID())
	}
	return entries, nil
}

// walkDuration of a straight line distance in meter.
func walkDuration(distance, walkSpeed float64) da.Rtime {
	sec := math.Round(distance * pkg.WALK_COMP / walkSpeed)
	return da.SecToRtime(uint32(sec))
}
