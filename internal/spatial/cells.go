package spatial

import (
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// CellKey is the zero-padded hex form of a leaf S2 cell id. Keys compare
// lexicographically in cell id order, so a cell range is a string range.
func CellKey(lat, lng float64) string {
	return keyOf(s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)))
}

func keyOf(id s2.CellID) string {
	return fmt.Sprintf("%016x", uint64(id))
}

// KeyRange is an inclusive range of cell keys
type KeyRange struct {
	Min string
	Max string
}

// BoxCovering returns the key ranges covering a lat/lng box. maxCells
// bounds the number of ranges; the covering may overshoot the box, so
// callers filter exact coordinates afterwards.
func BoxCovering(minLat, minLng, maxLat, maxLng float64, maxCells int) []KeyRange {
	if maxCells <= 0 {
		maxCells = 8
	}
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(minLat, minLng)).
		AddPoint(s2.LatLngFromDegrees(maxLat, maxLng))
	if minLng > maxLng {
		// box crosses the antimeridian
		rect = s2.Rect{Lat: rect.Lat, Lng: s1.IntervalFromEndpoints(
			(s1.Angle(minLng) * s1.Degree).Radians(),
			(s1.Angle(maxLng) * s1.Degree).Radians(),
		)}
	}

	coverer := &s2.RegionCoverer{MinLevel: 0, MaxLevel: 30, MaxCells: maxCells}
	cu := coverer.Covering(rect)
	out := make([]KeyRange, 0, len(cu))
	for _, id := range cu {
		out = append(out, KeyRange{Min: keyOf(id.RangeMin()), Max: keyOf(id.RangeMax())})
	}
	return out
}

// BoxContains reports whether the point lies inside the box, honouring
// boxes that cross the antimeridian.
func BoxContains(minLat, minLng, maxLat, maxLng, lat, lng float64) bool {
	if lat < minLat || lat > maxLat {
		return false
	}
	if minLng <= maxLng {
		return lng >= minLng && lng <= maxLng
	}
	return lng >= minLng || lng <= maxLng
}
