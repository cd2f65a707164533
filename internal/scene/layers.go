package scene

import (
	"sync"

	"github.com/jengzang/civic-map/internal/mapview"
)

// Icon is a constructed marker icon
type Icon struct {
	spec mapview.IconSpec
}

func (i *Icon) Spec() mapview.IconSpec { return i.spec }

// TileLayer is the base imagery layer
type TileLayer struct {
	id   string
	opts mapview.TileOptions
}

func (t *TileLayer) LayerID() string { return t.id }

// Marker is a single report pin
type Marker struct {
	id    string
	at    mapview.LatLng
	icon  *mapview.IconSpec
	popup string
}

func (m *Marker) LayerID() string { return m.id }

func (m *Marker) state() MarkerState {
	return MarkerState{ID: m.id, Lat: m.at.Lat, Lng: m.at.Lng, Popup: m.popup, Icon: m.icon}
}

// Group holds markers
type Group struct {
	id  string
	lib *Library

	mu      sync.Mutex
	markers []*Marker
}

func (g *Group) LayerID() string { return g.id }

func (g *Group) AddLayer(l mapview.Layer) error {
	mk, ok := l.(*Marker)
	if !ok {
		return ErrInvalidLayer
	}
	g.mu.Lock()
	g.markers = append(g.markers, mk)
	g.mu.Unlock()
	g.lib.bump()
	return nil
}

func (g *Group) ClearLayers() error {
	g.mu.Lock()
	g.markers = nil
	g.mu.Unlock()
	g.lib.bump()
	return nil
}

// Len returns the number of markers in the group
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.markers)
}

func (g *Group) states() []MarkerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]MarkerState, 0, len(g.markers))
	for _, mk := range g.markers {
		out = append(out, mk.state())
	}
	return out
}

// Heat is the weighted heat overlay
type Heat struct {
	id  string
	lib *Library

	mu     sync.Mutex
	points []mapview.HeatPoint
	opts   mapview.HeatOptions
}

func (h *Heat) LayerID() string { return h.id }

func (h *Heat) SetLatLngs(points []mapview.HeatPoint) error {
	h.mu.Lock()
	h.points = append(h.points[:0:0], points...)
	h.mu.Unlock()
	h.lib.bump()
	return nil
}

func (h *Heat) SetOptions(opts mapview.HeatOptions) error {
	h.mu.Lock()
	h.opts = opts
	h.mu.Unlock()
	h.lib.bump()
	return nil
}

func (h *Heat) state() *HeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &HeatState{
		ID:      h.id,
		Points:  append([]mapview.HeatPoint(nil), h.points...),
		Options: h.opts,
	}
}
