package spatial

import (
	"math"
)

// Point is a weighted location in degrees
type Point struct {
	Lat    float64
	Lng    float64
	Weight float64
}

// Centroid calculates the unweighted centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lng: sumLng / n}
}

// WeightedCentroid calculates the centroid with each point scaled by its
// weight. All-zero weights fall back to the plain centroid.
func WeightedCentroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLng, sumWeights float64
	for _, p := range points {
		sumLat += p.Lat * p.Weight
		sumLng += p.Lng * p.Weight
		sumWeights += p.Weight
	}
	if sumWeights == 0 {
		return Centroid(points)
	}
	return Point{Lat: sumLat / sumWeights, Lng: sumLng / sumWeights, Weight: sumWeights}
}

// WeightedRadiusOfGyration measures the weighted spread of points around
// their weighted centroid, in meters.
func WeightedRadiusOfGyration(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}

	center := WeightedCentroid(points)
	var sumSq, sumWeights float64
	for _, p := range points {
		w := p.Weight
		if center.Weight == 0 {
			w = 1
		}
		d := HaversineDistance(center.Lat, center.Lng, p.Lat, p.Lng)
		sumSq += w * d * d
		sumWeights += w
	}
	if sumWeights == 0 {
		return 0
	}
	return math.Sqrt(sumSq / sumWeights)
}
