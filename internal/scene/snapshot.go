package scene

import "github.com/jengzang/civic-map/internal/mapview"

// Scene is the JSON document the browser page renders
type Scene struct {
	Version      uint64                `json:"version"`
	Status       string                `json:"status"`
	Error        string                `json:"error,omitempty"`
	MapID        string                `json:"mapId,omitempty"`
	Ready        bool                  `json:"ready"`
	Removed      bool                  `json:"removed"`
	Options      mapview.MapOptions    `json:"options"`
	View         View                  `json:"view"`
	ZoomGestures bool                  `json:"zoomGestures"`
	SizeEpoch    int                   `json:"sizeEpoch"`
	Tiles        []mapview.TileOptions `json:"tiles,omitempty"`
	Heat         *HeatState            `json:"heat,omitempty"`
	Markers      []MarkerState         `json:"markers"`
	DefaultIcon  *mapview.IconSpec     `json:"defaultIcon,omitempty"`
}

// HeatState is an attached heat overlay. A detached overlay is omitted.
type HeatState struct {
	ID      string              `json:"id"`
	Points  []mapview.HeatPoint `json:"points"`
	Options mapview.HeatOptions `json:"options"`
}

// MarkerState is one rendered marker
type MarkerState struct {
	ID    string            `json:"id"`
	Lat   float64           `json:"lat"`
	Lng   float64           `json:"lng"`
	Popup string            `json:"popup"`
	Icon  *mapview.IconSpec `json:"icon,omitempty"`
}

// Pending is the scene served before a map exists
func Pending(status string) Scene {
	return Scene{Status: status, Markers: []MarkerState{}}
}
