package mapview

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/spatial"
	"github.com/jengzang/civic-map/internal/stats"
)

// ValidLocation reports whether loc is present, finite and inside
// geographic bounds.
func ValidLocation(loc *models.Location) bool {
	if loc == nil {
		return false
	}
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) || math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lng, 0) {
		return false
	}
	return s2.LatLngFromDegrees(loc.Lat, loc.Lng).IsValid()
}

// Weight is the heat intensity of a report. It never drops below 1 so that
// unvoted reports still register.
func Weight(r models.Report) float64 {
	if r.UpvoteCount < 1 {
		return 1
	}
	return float64(r.UpvoteCount)
}

// Geolocated keeps the reports with a valid location, preserving order
func Geolocated(reports []models.Report) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if ValidLocation(r.Location) {
			out = append(out, r)
		}
	}
	return out
}

// HeatPoints maps the geolocated reports to weighted heat points
func HeatPoints(reports []models.Report) []HeatPoint {
	points := make([]HeatPoint, 0, len(reports))
	for _, r := range reports {
		if !ValidLocation(r.Location) {
			continue
		}
		points = append(points, HeatPoint{
			Lat:    r.Location.Lat,
			Lng:    r.Location.Lng,
			Weight: Weight(r),
		})
	}
	return points
}

// Bounds returns the smallest lat/lng rectangle covering points. When that
// rectangle crosses the antimeridian MinLng is greater than MaxLng.
func Bounds(points []HeatPoint) (models.Bounds, bool) {
	if len(points) == 0 {
		return models.Bounds{}, false
	}
	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	lo, hi := rect.Lo(), rect.Hi()
	return models.Bounds{
		MinLat: lo.Lat.Degrees(),
		MinLng: lo.Lng.Degrees(),
		MaxLat: hi.Lat.Degrees(),
		MaxLng: hi.Lng.Degrees(),
	}, true
}

// Summarize builds the heatmap payload for a report snapshot
func Summarize(reports []models.Report) models.HeatmapResponse {
	points := HeatPoints(reports)
	resp := models.HeatmapResponse{
		Points:  points,
		Count:   len(points),
		Skipped: len(reports) - len(points),
	}
	weights := make([]float64, len(points))
	for i, p := range points {
		weights[i] = p.Weight
		if p.Weight > resp.MaxWeight {
			resp.MaxWeight = p.Weight
		}
	}
	resp.Weights = models.WeightStats(stats.Summarize(weights))
	if b, ok := Bounds(points); ok {
		resp.Bounds = &b
	}
	if len(points) > 0 {
		sp := make([]spatial.Point, len(points))
		for i, p := range points {
			sp[i] = spatial.Point{Lat: p.Lat, Lng: p.Lng, Weight: p.Weight}
		}
		c := spatial.WeightedCentroid(sp)
		resp.Center = &HeatPoint{Lat: c.Lat, Lng: c.Lng, Weight: c.Weight}
		resp.SpreadMeters = spatial.WeightedRadiusOfGyration(sp)
	}
	return resp
}
