package models

// ReportFilter represents filter parameters for querying cached reports
type ReportFilter struct {
	Category string   `form:"category"`
	MinLat   *float64 `form:"minLat"`
	MinLng   *float64 `form:"minLng"`
	MaxLat   *float64 `form:"maxLat"`
	MaxLng   *float64 `form:"maxLng"`
	Limit    int      `form:"limit"`
}

// Box returns the bounding box when all four edges are set
func (f ReportFilter) Box() (Bounds, bool) {
	if f.MinLat == nil || f.MinLng == nil || f.MaxLat == nil || f.MaxLng == nil {
		return Bounds{}, false
	}
	return Bounds{MinLat: *f.MinLat, MinLng: *f.MinLng, MaxLat: *f.MaxLat, MaxLng: *f.MaxLng}, true
}
