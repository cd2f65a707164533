package mapview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeClock is a manually advanced Scheduler.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, p := range t.clock.pending {
		if p == t {
			t.clock.pending = append(t.clock.pending[:i], t.clock.pending[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves time forward by d, firing due timers in order. Timers
// scheduled by fired callbacks run too if they fall inside the window.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool {
			if c.pending[i].at == c.pending[j].at {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].at < c.pending[j].at
		})
		if len(c.pending) == 0 || c.pending[0].at > target {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		if next.at > c.now {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

type fakeLayer struct {
	id string
}

func (l *fakeLayer) LayerID() string { return l.id }

type fakeIcon struct {
	spec IconSpec
}

func (i *fakeIcon) Spec() IconSpec { return i.spec }

type fakeMarker struct {
	fakeLayer
	at    LatLng
	icon  Icon
	popup string
}

type fakeGroup struct {
	fakeLayer
	mu     sync.Mutex
	layers []Layer
	clears int
}

func (g *fakeGroup) AddLayer(l Layer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.layers = append(g.layers, l)
	return nil
}

func (g *fakeGroup) ClearLayers() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.layers = nil
	g.clears++
	return nil
}

func (g *fakeGroup) Markers() []*fakeMarker {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*fakeMarker, 0, len(g.layers))
	for _, l := range g.layers {
		out = append(out, l.(*fakeMarker))
	}
	return out
}

type fakeHeat struct {
	fakeLayer
	mu       sync.Mutex
	points   []HeatPoint
	opts     HeatOptions
	setCalls int
	setErr   error
}

func (h *fakeHeat) SetLatLngs(points []HeatPoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.setErr != nil {
		return h.setErr
	}
	h.points = append([]HeatPoint(nil), points...)
	h.setCalls++
	return nil
}

func (h *fakeHeat) SetOptions(opts HeatOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = opts
	return nil
}

func (h *fakeHeat) Points() []HeatPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HeatPoint(nil), h.points...)
}

type fakeMap struct {
	mu            sync.Mutex
	opts          MapOptions
	layers        map[string]Layer
	handlers      map[Event][]func()
	readyFns      []func()
	ready         bool
	addCalls      map[string]int
	invalidations int
	zoomGestures  bool
	removeCalls   int
}

func newFakeMap(opts MapOptions) *fakeMap {
	return &fakeMap{
		opts:         opts,
		layers:       make(map[string]Layer),
		handlers:     make(map[Event][]func()),
		addCalls:     make(map[string]int),
		zoomGestures: true,
	}
}

func (m *fakeMap) AddLayer(l Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeCalls > 0 {
		return errors.New("map removed")
	}
	m.layers[l.LayerID()] = l
	m.addCalls[l.LayerID()]++
	return nil
}

func (m *fakeMap) RemoveLayer(l Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layers, l.LayerID())
	return nil
}

func (m *fakeMap) HasLayer(l Layer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.layers[l.LayerID()]
	return ok
}

func (m *fakeMap) InvalidateSize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
	return nil
}

func (m *fakeMap) WhenReady(fn func()) {
	m.mu.Lock()
	if m.ready {
		m.mu.Unlock()
		fn()
		return
	}
	m.readyFns = append(m.readyFns, fn)
	m.mu.Unlock()
}

func (m *fakeMap) On(ev Event, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[ev] = append(m.handlers[ev], fn)
}

func (m *fakeMap) SetZoomGestures(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoomGestures = enabled
}

func (m *fakeMap) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls++
	m.layers = make(map[string]Layer)
	return nil
}

func (m *fakeMap) markReady() {
	m.mu.Lock()
	m.ready = true
	fns := m.readyFns
	m.readyFns = nil
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *fakeMap) fire(ev Event) {
	m.mu.Lock()
	fns := append([]func(){}, m.handlers[ev]...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *fakeMap) AddCalls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCalls[id]
}

func (m *fakeMap) Invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidations
}

func (m *fakeMap) ZoomGestures() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoomGestures
}

type fakeLib struct {
	mu              sync.Mutex
	nextID          int
	defaultIconSets int
	maps            []*fakeMap
	groups          []*fakeGroup
	heats           []*fakeHeat
	markersBuilt    int

	mapErr    error
	tileErr   error
	heatErr   error
	iconErr   error
	markerErr func(at LatLng) error
}

func (f *fakeLib) id(kind string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", kind, f.nextID)
}

func (f *fakeLib) SetDefaultIcon(IconSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultIconSets++
	return nil
}

func (f *fakeLib) NewIcon(spec IconSpec) (Icon, error) {
	if f.iconErr != nil {
		return nil, f.iconErr
	}
	return &fakeIcon{spec: spec}, nil
}

func (f *fakeLib) NewMap(_ Container, opts MapOptions) (Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	m := newFakeMap(opts)
	f.maps = append(f.maps, m)
	return m, nil
}

func (f *fakeLib) NewTileLayer(TileOptions) (Layer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tileErr != nil {
		return nil, f.tileErr
	}
	return &fakeLayer{id: f.id("tiles")}, nil
}

func (f *fakeLib) NewLayerGroup() (LayerGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &fakeGroup{fakeLayer: fakeLayer{id: f.id("group")}}
	f.groups = append(f.groups, g)
	return g, nil
}

func (f *fakeLib) NewHeatLayer(points []HeatPoint, opts HeatOptions) (HeatLayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heatErr != nil {
		return nil, f.heatErr
	}
	h := &fakeHeat{fakeLayer: fakeLayer{id: f.id("heat")}, points: append([]HeatPoint(nil), points...), opts: opts}
	f.heats = append(f.heats, h)
	return h, nil
}

func (f *fakeLib) NewMarker(at LatLng, icon Icon, popup string) (Layer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markerErr != nil {
		if err := f.markerErr(at); err != nil {
			return nil, err
		}
	}
	f.markersBuilt++
	return &fakeMarker{fakeLayer: fakeLayer{id: f.id("marker")}, at: at, icon: icon, popup: popup}, nil
}

func (f *fakeLib) Map() *fakeMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.maps) == 0 {
		return nil
	}
	return f.maps[0]
}

func (f *fakeLib) Group() *fakeGroup {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.groups) == 0 {
		return nil
	}
	return f.groups[0]
}

func (f *fakeLib) Heat() *fakeHeat {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heats) == 0 {
		return nil
	}
	return f.heats[0]
}

type fakeContainer struct {
	mu        sync.Mutex
	size      Size
	viewport  int
	observers map[int]func()
	next      int
}

func newFakeContainer(w, h, viewport int) *fakeContainer {
	return &fakeContainer{size: Size{Width: w, Height: h}, viewport: viewport, observers: make(map[int]func())}
}

func (c *fakeContainer) Size() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *fakeContainer) ViewportWidth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *fakeContainer) ObserveResize(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *fakeContainer) Resize(w, h int) {
	c.mu.Lock()
	c.size = Size{Width: w, Height: h}
	fns := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *fakeContainer) Observers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

var browser = EnvironmentFunc(func() bool { return true })

func staticLoader(lib Library) *Loader {
	return NewLoader(func(context.Context) (Library, error) { return lib, nil }, nil)
}

func resetDefaultIconPatch() {
	defaultIconPatch.Lock()
	defaultIconPatch.done = false
	defaultIconPatch.Unlock()
}

type countingObserver struct {
	mu       sync.Mutex
	failures []string
	syncs    []int
}

func (o *countingObserver) StateChanged(State, State) {}

func (o *countingObserver) MarkersSynced(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncs = append(o.syncs, n)
}

func (o *countingObserver) HeatApplied(int) {}

func (o *countingObserver) OverlayFailed(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, op)
}

func (o *countingObserver) Failures() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.failures...)
}
