package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Location is a report's geotag. Either coordinate may be NaN when the
// upstream payload carried something that is not a number.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Report is a civic issue report as served by the reports API
type Report struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Location    *Location `json:"location,omitempty"`
	UpvoteCount int       `json:"upvoteCount"`
}

// ReportListResponse is the envelope some API deployments wrap reports in,
// under either key
type ReportListResponse struct {
	Data    []Report `json:"data"`
	Reports []Report `json:"reports"`
}

// UnmarshalJSON accepts numeric strings for coordinates and falls back to NaN
// for anything else, so that malformed geometry is filtered downstream instead
// of failing the whole list.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat json.RawMessage `json:"lat"`
		Lng json.RawMessage `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		l.Lat, l.Lng = math.NaN(), math.NaN()
		return nil
	}
	l.Lat = lenientFloat(raw.Lat)
	l.Lng = lenientFloat(raw.Lng)
	return nil
}

// UnmarshalJSON reads the weight from upvoteCount or upvotes. Missing,
// negative or non-numeric values become 0.
func (r *Report) UnmarshalJSON(data []byte) error {
	type plain Report
	var raw struct {
		plain
		UpvoteCount json.RawMessage `json:"upvoteCount"`
		Upvotes     json.RawMessage `json:"upvotes"`
		ID          json.RawMessage `json:"id"`
		MongoID     json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Report(raw.plain)
	if l := r.Location; l != nil && !finite(l.Lat, l.Lng) {
		// unusable geometry is dropped; NaN cannot be re-encoded as JSON
		r.Location = nil
	}
	r.ID = lenientID(raw.ID)
	if r.ID == "" {
		r.ID = lenientID(raw.MongoID)
	}

	weight := raw.UpvoteCount
	if len(weight) == 0 || string(weight) == "null" {
		weight = raw.Upvotes
	}
	v := lenientFloat(weight)
	switch {
	case !finite(v) || v < 0:
		r.UpvoteCount = 0
	case v >= maxUpvotes:
		r.UpvoteCount = maxUpvotes
	default:
		r.UpvoteCount = int(v)
	}
	return nil
}

// maxUpvotes bounds decoded counts so the float to int conversion is defined
const maxUpvotes = math.MaxInt32

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// HasLocation reports whether the report carries a geotag at all
func (r Report) HasLocation() bool {
	return r.Location != nil
}

func lenientFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// ids are opaque; numeric ids from older API versions are kept as their text
func lenientID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
