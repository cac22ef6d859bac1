package spatialindex

import (
	"math"
	"sort"

	"github.com/lintang-b-s/transitx/pkg"
	"github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

type Rtree struct {
	tr *rtree.RTreeG[datastructure.Index]
	tt *datastructure.Timetable
}

// StopCandidate is a stop point near a query coordinate.
type StopCandidate struct {
	stopPoint datastructure.Index
	distance  float64 // meter
}

func NewStopCandidate(stopPoint datastructure.Index, distance float64) StopCandidate {
	return StopCandidate{stopPoint: stopPoint, distance: distance}
}

func (sc StopCandidate) GetStopPoint() datastructure.Index {
	return sc.stopPoint
}

func (sc StopCandidate) GetDistance() float64 {
	return sc.distance
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[datastructure.Index]
	return &Rtree{
		tr: &tr,
	}
}

// Build. build r-tree over all stop points, with each leaf having bounding box with radius boundingBoxRadius (in km)
func (rt *Rtree) Build(tt *datastructure.Timetable, boundingBoxRadius float64, log *zap.Logger) {
	log.Info("Building R-tree spatial index...", zap.Int("stopPoints", tt.NumberOfStopPoints()))
	rt.tt = tt
	for sp := 0; sp < tt.NumberOfStopPoints(); sp++ {
		stop := tt.GetStopPoint(datastructure.Index(sp))
		lowerLat, lowerLon := geo.GetDestinationPoint(stop.GetLat(), stop.GetLon(), 225, boundingBoxRadius)
		upperLat, upperLon := geo.GetDestinationPoint(stop.GetLat(), stop.GetLon(), 45, boundingBoxRadius)

		rt.tr.Insert([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat}, datastructure.Index(sp))
	}

	log.Info("R-tree spatial index built.")
}

// SearchWithinRadius search for stop points within radius (in km) from the query point (qLat, qLon),
// closest first, at most MAX_ENTRY_STOPS of them.
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64) []StopCandidate {
	// the box corners lie on the diagonal, so they must be radius*sqrt(2) away to cover the whole circle
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius*math.Sqrt2)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius*math.Sqrt2)

	results := make([]StopCandidate, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, sp datastructure.Index) bool {
			stop := rt.tt.GetStopPoint(sp)
			dist := geo.CalculateHaversineDistance(qLat, qLon, stop.GetLat(), stop.GetLon())
			if dist <= radius {
				results = append(results, NewStopCandidate(sp, dist*1000))
			}
			return true
		})

	sort.Slice(results, func(i, j int) bool {
		if results[i].distance == results[j].distance {
			return results[i].stopPoint < results[j].stopPoint
		}
		return results[i].distance < results[j].distance
	})
	if len(results) > pkg.MAX_ENTRY_STOPS {
		results = results[:pkg.MAX_ENTRY_STOPS]
	}
	return results
}
