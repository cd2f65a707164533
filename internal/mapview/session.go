// Package mapview drives an interactive report map: it loads the mapping
// library lazily, owns one map instance per session with a marker overlay and
// a heat overlay, keeps both in step with the report list and survives
// resizes, zoom transitions and teardown races.
//
// All engine callbacks and timers are funnelled through the session's
// Scheduler and run under the session mutex, so a session behaves like a
// single-threaded event loop. Every deferred callback re-checks liveness
// before touching the map.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/models"
)

// State is the lifecycle state of a Session
type State int

const (
	StateUnmounted State = iota
	StateLoading
	StateAwaitingContainer
	StateInitializing
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateLoading:
		return "loading"
	case StateAwaitingContainer:
		return "awaiting_container"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadyMounted   = errors.New("mapview: session already mounted")
	ErrDisposed         = errors.New("mapview: session disposed")
	ErrContainerTimeout = errors.New("mapview: container never reported a positive size")
)

// Observer receives session telemetry. Methods are called with the session
// lock held and must not call back into the session.
type Observer interface {
	StateChanged(from, to State)
	MarkersSynced(markers int)
	HeatApplied(points int)
	OverlayFailed(op string)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) MarkersSynced(int)         {}
func (nopObserver) HeatApplied(int)           {}
func (nopObserver) OverlayFailed(string)      {}

// SessionOption customizes a Session
type SessionOption func(*Session)

// WithScheduler replaces the wall-clock scheduler
func WithScheduler(s Scheduler) SessionOption {
	return func(sess *Session) { sess.sched = s }
}

// WithLogger sets the session logger
func WithLogger(l logging.Logger) SessionOption {
	return func(sess *Session) { sess.log = l }
}

// WithObserver attaches a telemetry observer
func WithObserver(o Observer) SessionOption {
	return func(sess *Session) { sess.obs = o }
}

// Session is one mounted map widget
type Session struct {
	opts   Options
	loader *Loader
	sched  Scheduler
	log    logging.Logger
	obs    Observer

	ready     chan struct{}
	readyOnce sync.Once

	// tmu guards the pending timer set only; it is never held while
	// acquiring mu.
	tmu       sync.Mutex
	timers    map[int]Timer
	nextTimer int

	mu         sync.Mutex
	state      State
	err        error
	container  Container
	lib        Library
	icon       Icon
	m          Map
	tiles      Layer
	markers    LayerGroup
	heat       HeatLayer
	disconnect func()
	mobile     bool
	reports    []models.Report

	markerCount         int
	heatDetachedForZoom bool
	touchSeq            int
}

// NewSession creates an unmounted session
func NewSession(loader *Loader, opts Options, options ...SessionOption) *Session {
	s := &Session{
		opts:   opts.WithDefaults(),
		loader: loader,
		sched:  SystemScheduler(),
		log:    logging.NewNop(),
		obs:    nopObserver{},
		ready:  make(chan struct{}),
		timers: make(map[int]Timer),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Mount loads the library and starts waiting for the container. It blocks
// only for the library load; container polling and overlay construction
// continue asynchronously. A load failure leaves the session in
// StateLoading and is returned as well as recorded in Err.
func (s *Session) Mount(ctx context.Context, env Environment, c Container, reports []models.Report) error {
	s.mu.Lock()
	switch s.state {
	case StateUnmounted:
	case StateDisposed:
		s.mu.Unlock()
		return ErrDisposed
	default:
		s.mu.Unlock()
		s.log.Debug("duplicate mount ignored")
		return ErrAlreadyMounted
	}
	s.container = c
	s.reports = cloneReports(reports)
	s.setState(StateLoading)
	s.mu.Unlock()

	lib, icon, err := s.loader.Load(ctx, env)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return nil
	}
	if err != nil {
		s.fail(err)
		return err
	}
	s.lib, s.icon = lib, icon
	s.setState(StateAwaitingContainer)
	s.pollContainer(0)
	return nil
}

// Unmount tears the session down. It is terminal and idempotent.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	s.setState(StateDisposed)

	if s.disconnect != nil {
		s.disconnect()
		s.disconnect = nil
	}
	s.stopTimers()
	if s.m != nil {
		if err := try(s.m.Remove); err != nil {
			s.log.Warn("map removal failed", logging.Err(err))
		}
	}
	s.m, s.tiles, s.markers, s.heat = nil, nil, nil, nil
	s.lib, s.icon, s.container = nil, nil, nil
	s.reports = nil
	s.markDone()
}

// SetReports replaces the report list. Before the session is ready the
// list is only remembered; afterwards markers are rebuilt immediately and
// the heat overlay is refreshed after HeatRefreshDelay.
func (s *Session) SetReports(reports []models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	s.reports = cloneReports(reports)
	if s.state != StateReady {
		return
	}
	s.syncMarkers()
	s.schedule(s.opts.HeatRefreshDelay, s.applyHeat)
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that stopped the mount, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Ready is closed once mounting finished, successfully or not, or the
// session was disposed.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// MarkerCount is the number of markers placed by the last sync
func (s *Session) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerCount
}

// HeatAttached reports whether the heat overlay is on the map
func (s *Session) HeatAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatAttached()
}

// Mobile reports whether mobile defaults were selected
func (s *Session) Mobile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobile
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if from != to {
		s.obs.StateChanged(from, to)
	}
}

func (s *Session) fail(err error) {
	s.err = err
	s.log.Error("map session failed to mount", logging.String("state", s.state.String()), logging.Err(err))
	s.markDone()
}

func (s *Session) markDone() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Session) pollContainer(attempt int) {
	if s.container.Size().Positive() {
		s.initialize()
		return
	}
	if s.opts.MaxContainerPolls > 0 && attempt >= s.opts.MaxContainerPolls {
		s.fail(fmt.Errorf("%w after %d polls", ErrContainerTimeout, attempt))
		return
	}
	s.schedule(s.opts.ContainerPollInterval, func() { s.pollContainer(attempt + 1) })
}

func (s *Session) initialize() {
	s.setState(StateInitializing)

	s.mobile = s.opts.IsMobile(s.container.ViewportWidth())
	zoom := s.opts.DesktopZoom
	if s.mobile {
		zoom = s.opts.MobileZoom
	}

	var m Map
	err := try(func() error {
		var err error
		m, err = s.lib.NewMap(s.container, MapOptions{
			Center:          s.opts.DefaultCenter,
			Zoom:            zoom,
			ScrollWheelZoom: !s.mobile,
			TouchZoom:       true,
			ZoomControl:     true,
			Theme:           s.opts.Theme,
		})
		return err
	})
	if err != nil {
		s.fail(fmt.Errorf("create map: %w", err))
		return
	}
	s.m = m

	if err := try(func() error {
		t, err := s.lib.NewTileLayer(s.opts.Tiles())
		if err != nil {
			return err
		}
		s.tiles = t
		return m.AddLayer(t)
	}); err != nil {
		s.overlayFailure("tile layer", err)
	}

	if err := try(func() error {
		g, err := s.lib.NewLayerGroup()
		if err != nil {
			return err
		}
		if err := m.AddLayer(g); err != nil {
			return err
		}
		s.markers = g
		return nil
	}); err != nil {
		s.overlayFailure("marker overlay", err)
	}

	m.WhenReady(s.dispatch(s.onMapReady))
	s.bindViewportEvents()

	s.setState(StateReady)
	s.markDone()
	s.syncMarkers()
}

// schedule runs fn after d under the session lock unless the session has
// been disposed by then.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	id := s.nextTimer
	s.nextTimer++
	s.timers[id] = s.sched.AfterFunc(d, func() {
		s.tmu.Lock()
		delete(s.timers, id)
		s.tmu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateDisposed {
			return
		}
		fn()
	})
}

// dispatch turns fn into an engine callback that is deferred onto the
// scheduler, so engines may invoke it from any goroutine or re-entrantly.
func (s *Session) dispatch(fn func()) func() {
	return func() { s.schedule(0, fn) }
}

func (s *Session) stopTimers() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Session) overlayFailure(op string, err error) {
	s.obs.OverlayFailed(op)
	s.log.Warn("overlay operation failed", logging.String("op", op), logging.Err(err))
}

func (s *Session) sized() bool {
	return s.container != nil && s.container.Size().Positive()
}

func (s *Session) heatAttached() bool {
	return s.m != nil && s.heat != nil && s.m.HasLayer(s.heat)
}

// try runs an engine call, converting a panic into an error
func try(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func cloneReports(reports []models.Report) []models.Report {
	if reports == nil {
		return nil
	}
	out := make([]models.Report, len(reports))
	copy(out, reports)
	return out
}
