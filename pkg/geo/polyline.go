package geo

import (
	"github.com/twpayne/go-polyline"
)

func PolylineFromCoords(coords []Coordinate) string {
	points := make([][]float64, 0, len(coords))
	for _, c := range coords {
		points = append(points, []float64{c.Lat, c.Lon})
	}
	return string(polyline.EncodeCoords(points))
}
