package scene

import (
	"sync"

	"github.com/jengzang/civic-map/internal/mapview"
)

// Viewport is the browser-reported map container. It implements
// mapview.Container; sizes arrive through Resize.
type Viewport struct {
	mu            sync.Mutex
	size          mapview.Size
	viewportWidth int
	observers     map[int]func()
	next          int
	m             *Map
}

// NewViewport creates a container with the size reported at handshake
func NewViewport(width, height, viewportWidth int) *Viewport {
	return &Viewport{
		size:          mapview.Size{Width: width, Height: height},
		viewportWidth: viewportWidth,
		observers:     make(map[int]func()),
	}
}

func (v *Viewport) Size() mapview.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

func (v *Viewport) ViewportWidth() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewportWidth
}

func (v *Viewport) ObserveResize(fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.next
	v.next++
	v.observers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

// Resize updates the container box and notifies observers on change.
// A zero viewportWidth keeps the previous value.
func (v *Viewport) Resize(width, height, viewportWidth int) {
	v.mu.Lock()
	if viewportWidth > 0 {
		v.viewportWidth = viewportWidth
	}
	next := mapview.Size{Width: width, Height: height}
	if next == v.size {
		v.mu.Unlock()
		return
	}
	v.size = next
	fns := make([]func(), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Map returns the map mounted into this viewport, or nil before mount
func (v *Viewport) Map() *Map {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.m
}

func (v *Viewport) attach(m *Map) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = m
}
