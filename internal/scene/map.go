package scene

import (
	"sync"

	"github.com/jengzang/civic-map/internal/mapview"
)

// View is the browser's current center and zoom
type View struct {
	Center mapview.LatLng `json:"center"`
	Zoom   int            `json:"zoom"`
}

// Map is the scene graph of one map instance. Handlers registered through
// On and WhenReady are always invoked without the map lock held.
type Map struct {
	id  string
	lib *Library

	mu           sync.Mutex
	opts         mapview.MapOptions
	view         View
	layers       []mapview.Layer
	handlers     map[mapview.Event][]func()
	readyFns     []func()
	ready        bool
	removed      bool
	zoomGestures bool
	sizeEpoch    int
}

// ID identifies the map within its library
func (m *Map) ID() string { return m.id }

func (m *Map) AddLayer(l mapview.Layer) error {
	switch l.(type) {
	case *TileLayer, *Group, *Heat, *Marker:
	default:
		return ErrInvalidLayer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrRemoved
	}
	if m.indexOf(l) >= 0 {
		return nil
	}
	m.layers = append(m.layers, l)
	m.lib.bump()
	return nil
}

func (m *Map) RemoveLayer(l mapview.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrRemoved
	}
	if i := m.indexOf(l); i >= 0 {
		m.layers = append(m.layers[:i], m.layers[i+1:]...)
		m.lib.bump()
	}
	return nil
}

func (m *Map) HasLayer(l mapview.Layer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(l) >= 0
}

func (m *Map) indexOf(l mapview.Layer) int {
	for i, have := range m.layers {
		if have.LayerID() == l.LayerID() {
			return i
		}
	}
	return -1
}

// InvalidateSize asks the browser to recompute tile and canvas sizes
func (m *Map) InvalidateSize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrRemoved
	}
	m.sizeEpoch++
	m.lib.bump()
	return nil
}

func (m *Map) WhenReady(fn func()) {
	m.mu.Lock()
	if !m.ready {
		m.readyFns = append(m.readyFns, fn)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	fn()
}

func (m *Map) On(ev mapview.Event, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[ev] = append(m.handlers[ev], fn)
}

func (m *Map) SetZoomGestures(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zoomGestures != enabled {
		m.zoomGestures = enabled
		m.lib.bump()
	}
}

func (m *Map) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return nil
	}
	m.removed = true
	m.layers = nil
	m.handlers = make(map[mapview.Event][]func())
	m.readyFns = nil
	m.lib.bump()
	return nil
}

// MarkReady records that the browser finished creating its map and runs
// the pending ready callbacks.
func (m *Map) MarkReady() {
	m.mu.Lock()
	if m.ready || m.removed {
		m.mu.Unlock()
		return
	}
	m.ready = true
	fns := m.readyFns
	m.readyFns = nil
	m.mu.Unlock()
	m.lib.bump()
	for _, fn := range fns {
		fn()
	}
}

// Fire dispatches a viewport event to the registered handlers
func (m *Map) Fire(ev mapview.Event) {
	m.mu.Lock()
	fns := append([]func(){}, m.handlers[ev]...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// SetView records the browser's center and zoom after a move or zoom
func (m *Map) SetView(v View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = v
}

// Snapshot captures the scene for the browser
func (m *Map) Snapshot() Scene {
	m.mu.Lock()
	sc := Scene{
		MapID:        m.id,
		Ready:        m.ready,
		Removed:      m.removed,
		Options:      m.opts,
		View:         m.view,
		ZoomGestures: m.zoomGestures,
		SizeEpoch:    m.sizeEpoch,
	}
	layers := append([]mapview.Layer(nil), m.layers...)
	m.mu.Unlock()

	sc.Version = m.lib.Revision()
	sc.DefaultIcon = m.lib.DefaultIcon()
	sc.Markers = []MarkerState{}
	for _, l := range layers {
		switch v := l.(type) {
		case *TileLayer:
			sc.Tiles = append(sc.Tiles, v.opts)
		case *Group:
			sc.Markers = append(sc.Markers, v.states()...)
		case *Marker:
			sc.Markers = append(sc.Markers, v.state())
		case *Heat:
			sc.Heat = v.state()
		}
	}
	return sc
}
