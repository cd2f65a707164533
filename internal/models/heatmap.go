package models

// HeatmapPoint is one weighted point of the report heat overlay
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"` // max(upvoteCount, 1)
}

// HeatmapResponse represents the heatmap API response
type HeatmapResponse struct {
	Points    []HeatmapPoint `json:"points"`
	Count     int            `json:"count"`
	Skipped   int            `json:"skipped"` // reports without usable geometry
	MaxWeight float64        `json:"max_weight"`
	Bounds    *Bounds        `json:"bounds,omitempty"`
	// Center is the weight-scaled centroid, SpreadMeters its radius of gyration
	Center       *HeatmapPoint `json:"center,omitempty"`
	SpreadMeters float64       `json:"spread_meters"`
	Weights      WeightStats   `json:"weights"`
}

// WeightStats summarizes the point weights
type WeightStats struct {
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	P95     float64 `json:"p95"`
	Ceiling float64 `json:"ceiling"`
}

// Bounds is a lat/lng bounding rectangle. MinLng > MaxLng means the box
// wraps across the antimeridian, as in report box queries.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}
