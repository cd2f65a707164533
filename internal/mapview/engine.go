package mapview

import (
	"time"

	"github.com/jengzang/civic-map/internal/models"
)

// Event names a map viewport event the session subscribes to
type Event string

const (
	EventZoomStart  Event = "zoomstart"
	EventZoomEnd    Event = "zoomend"
	EventTouchStart Event = "touchstart"
	EventTouchEnd   Event = "touchend"
)

// LatLng is a geographic coordinate in degrees
type LatLng struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" mapstructure:"lng"`
}

// HeatPoint is a weighted point fed to the heat overlay
type HeatPoint = models.HeatmapPoint

// Size is a container box in CSS pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Positive reports whether both dimensions are above zero
func (s Size) Positive() bool {
	return s.Width > 0 && s.Height > 0
}

// MapOptions configures a new map instance
type MapOptions struct {
	Center          LatLng `json:"center"`
	Zoom            int    `json:"zoom"`
	ScrollWheelZoom bool   `json:"scrollWheelZoom"`
	TouchZoom       bool   `json:"touchZoom"`
	ZoomControl     bool   `json:"zoomControl"`
	Theme           Theme  `json:"theme"`
}

// TileOptions configures the base tile layer
type TileOptions struct {
	URLTemplate string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

// HeatOptions configures the heat overlay. Gradient keys are stop
// positions in [0,1] written as strings ("0.4").
type HeatOptions struct {
	Radius     int               `json:"radius" mapstructure:"radius"`
	Blur       int               `json:"blur" mapstructure:"blur"`
	MaxZoom    int               `json:"maxZoom" mapstructure:"max_zoom"`
	MinOpacity float64           `json:"minOpacity" mapstructure:"min_opacity"`
	Gradient   map[string]string `json:"gradient,omitempty" mapstructure:"gradient"`
}

// IconSpec describes a marker icon image set
type IconSpec struct {
	IconURL       string `json:"iconUrl" mapstructure:"icon_url"`
	IconRetinaURL string `json:"iconRetinaUrl,omitempty" mapstructure:"icon_retina_url"`
	ShadowURL     string `json:"shadowUrl,omitempty" mapstructure:"shadow_url"`
	Size          [2]int `json:"iconSize"`
	Anchor        [2]int `json:"iconAnchor"`
	PopupAnchor   [2]int `json:"popupAnchor"`
}

// Layer is anything that can be attached to a Map
type Layer interface {
	LayerID() string
}

// Icon is a constructed, reusable marker icon
type Icon interface {
	Spec() IconSpec
}

// LayerGroup holds discrete layers such as markers
type LayerGroup interface {
	Layer
	AddLayer(l Layer) error
	ClearLayers() error
}

// HeatLayer is the weighted heat overlay
type HeatLayer interface {
	Layer
	SetLatLngs(points []HeatPoint) error
	SetOptions(opts HeatOptions) error
}

// Map is the live map instance of one session. Implementations may invoke
// registered callbacks from any goroutine, including synchronously from
// WhenReady when the map is already ready.
type Map interface {
	AddLayer(l Layer) error
	RemoveLayer(l Layer) error
	HasLayer(l Layer) bool
	InvalidateSize() error
	WhenReady(fn func())
	On(ev Event, fn func())
	// SetZoomGestures toggles scroll and drag driven zoom.
	SetZoomGestures(enabled bool)
	Remove() error
}

// Library is a loaded mapping engine together with its heat extension
type Library interface {
	// SetDefaultIcon replaces the engine-wide default marker icon.
	SetDefaultIcon(spec IconSpec) error
	NewIcon(spec IconSpec) (Icon, error)
	NewMap(c Container, opts MapOptions) (Map, error)
	NewTileLayer(opts TileOptions) (Layer, error)
	NewLayerGroup() (LayerGroup, error)
	NewHeatLayer(points []HeatPoint, opts HeatOptions) (HeatLayer, error)
	// NewMarker builds a marker; a nil icon selects the default icon.
	NewMarker(at LatLng, icon Icon, popupHTML string) (Layer, error)
}

// Container is the drawing surface a map is mounted into
type Container interface {
	Size() Size
	// ViewportWidth is the width of the hosting viewport, used for the
	// mobile breakpoint. Zero means unknown.
	ViewportWidth() int
	// ObserveResize registers fn for box size changes and returns a
	// function that disconnects the observer.
	ObserveResize(fn func()) (disconnect func())
}

// Timer is a pending scheduled callback
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemScheduler schedules on the wall clock
func SystemScheduler() Scheduler {
	return clockScheduler{}
}
