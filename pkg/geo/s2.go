package geo

import (
	"github.com/golang/geo/s2"
)

// GreatCircleDistance returns the distance between a and b in meter.
func GreatCircleDistance(a, b Coordinate) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lon)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return la.Distance(lb).Radians() * earthRadiusKM * 1000
}

// Centroid returns the spherical centroid of the given points, used as the position of a stop area.
func Centroid(coords []Coordinate) Coordinate {
	if len(coords) == 0 {
		return Coordinate{}
	}
	var sum s2.Point
	for _, c := range coords {
		sum = s2.Point{Vector: sum.Add(s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon)).Vector)}
	}
	ll := s2.LatLngFromPoint(s2.Point{Vector: sum.Normalize()})
	return NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
}
