package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jengzang/civic-map/internal/auth"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/scene"
)

var (
	ErrSessionNotFound = errors.New("service: map session not found")
	ErrMapNotReady     = errors.New("service: map not created yet")
	ErrUnknownEvent    = errors.New("service: unknown viewport event")
	ErrTooManySessions = errors.New("service: session limit reached")
)

// Event types posted by the browser page
const (
	EventReady      = "ready"
	EventResize     = "resize"
	EventMove       = "move"
	EventZoomStart  = string(mapview.EventZoomStart)
	EventZoomEnd    = string(mapview.EventZoomEnd)
	EventTouchStart = string(mapview.EventTouchStart)
	EventTouchEnd   = string(mapview.EventTouchEnd)
)

// CreateSessionRequest is the page handshake
type CreateSessionRequest struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ViewportWidth int    `json:"viewportWidth"`
	UserAgent     string `json:"-"`
}

// SessionInfo is returned to the page after a session was created
type SessionInfo struct {
	ID     string       `json:"id"`
	Token  string       `json:"token"`
	State  string       `json:"state"`
	Mobile bool         `json:"mobile"`
	Assets scene.Assets `json:"assets"`
}

// ViewportEvent is one event posted by the page
type ViewportEvent struct {
	Type          string          `json:"type" binding:"required"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	ViewportWidth int             `json:"viewportWidth"`
	Center        *mapview.LatLng `json:"center,omitempty"`
	Zoom          *int            `json:"zoom,omitempty"`
}

// MapConfig tunes the session registry
type MapConfig struct {
	IdleTimeout  time.Duration
	MountTimeout time.Duration
	MaxSessions  int
	Assets       scene.Assets
	Options      []mapview.SessionOption
}

type sessionEntry struct {
	id       string
	session  *mapview.Session
	viewport *scene.Viewport

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *sessionEntry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *sessionEntry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// MapService owns the live map sessions of all open pages and keeps them
// fed with the current report list.
type MapService struct {
	cfg     MapConfig
	loader  *mapview.Loader
	opts    mapview.Options
	reports *ReportService
	signer  *auth.Signer
	log     logging.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewMapService creates a map service
func NewMapService(cfg MapConfig, loader *mapview.Loader, opts mapview.Options, reports *ReportService, signer *auth.Signer, log logging.Logger) *MapService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.MountTimeout <= 0 {
		cfg.MountTimeout = 30 * time.Second
	}
	s := &MapService{
		cfg:      cfg,
		loader:   loader,
		opts:     opts.WithDefaults(),
		reports:  reports,
		signer:   signer,
		log:      log.Named("maps"),
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
	reports.Subscribe(s.broadcast)
	return s
}

// BrowserEnvironment treats requests from graphical user agents as
// browser contexts able to host a map.
func BrowserEnvironment(userAgent string) mapview.Environment {
	return mapview.EnvironmentFunc(func() bool {
		return strings.Contains(userAgent, "Mozilla/")
	})
}

// CreateSession mounts a new map session for a page. The library load is
// detached from ctx so a dropped request cannot fail the shared load for
// other pages.
func (s *MapService) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	s.mu.RLock()
	full := s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions
	s.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	log := s.log.With(logging.String("session_id", id))
	options := append(append([]mapview.SessionOption(nil), s.cfg.Options...), mapview.WithLogger(log))
	entry := &sessionEntry{
		id:       id,
		session:  mapview.NewSession(s.loader, s.opts, options...),
		viewport: scene.NewViewport(req.Width, req.Height, req.ViewportWidth),
		lastSeen: s.now(),
	}

	token, err := s.signer.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	mountCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MountTimeout)
	defer cancel()
	if err := entry.session.Mount(mountCtx, BrowserEnvironment(req.UserAgent), entry.viewport, s.reports.Current()); err != nil {
		entry.session.Unmount()
		return nil, err
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		entry.session.Unmount()
		return nil, ErrTooManySessions
	}
	s.sessions[id] = entry
	s.mu.Unlock()
	// a refresh published during mount only reached registered sessions
	entry.session.SetReports(s.reports.Current())
	log.Info("map session created",
		logging.Int("width", req.Width),
		logging.Int("height", req.Height),
		logging.Int("viewport_width", req.ViewportWidth),
	)

	return &SessionInfo{
		ID:     id,
		Token:  token,
		State:  entry.session.State().String(),
		Mobile: s.opts.IsMobile(req.ViewportWidth),
		Assets: s.cfg.Assets,
	}, nil
}

func (s *MapService) lookup(id, token string) (*sessionEntry, error) {
	if err := s.signer.VerifyFor(token, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.touch(s.now())
	return entry, nil
}

// ApplyEvent feeds a viewport event from the page into its session
func (s *MapService) ApplyEvent(id, token string, ev ViewportEvent) error {
	entry, err := s.lookup(id, token)
	if err != nil {
		return err
	}

	if ev.Type == EventResize {
		entry.viewport.Resize(ev.Width, ev.Height, ev.ViewportWidth)
		return nil
	}

	m := entry.viewport.Map()
	if m == nil {
		return ErrMapNotReady
	}
	if ev.Center != nil && ev.Zoom != nil {
		m.SetView(scene.View{Center: *ev.Center, Zoom: *ev.Zoom})
	}

	switch ev.Type {
	case EventReady:
		m.MarkReady()
	case EventMove:
	case EventZoomStart, EventZoomEnd, EventTouchStart, EventTouchEnd:
		m.Fire(mapview.Event(ev.Type))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return nil
}

// Scene returns the scene the page should render
func (s *MapService) Scene(id, token string) (scene.Scene, error) {
	entry, err := s.lookup(id, token)
	if err != nil {
		return scene.Scene{}, err
	}
	state := entry.session.State()
	m := entry.viewport.Map()
	if m == nil {
		sc := scene.Pending(state.String())
		if err := entry.session.Err(); err != nil {
			sc.Error = err.Error()
		}
		return sc, nil
	}
	sc := m.Snapshot()
	sc.Status = state.String()
	return sc, nil
}

// CloseSession unmounts and forgets a session
func (s *MapService) CloseSession(id, token string) error {
	entry, err := s.lookup(id, token)
	if err != nil {
		return err
	}
	s.remove(entry)
	return nil
}

func (s *MapService) remove(entry *sessionEntry) {
	s.mu.Lock()
	delete(s.sessions, entry.id)
	s.mu.Unlock()
	entry.session.Unmount()
	s.log.Info("map session closed", logging.String("session_id", entry.id))
}

// SessionCount returns the number of live sessions
func (s *MapService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapIdle closes sessions whose page has not called in for IdleTimeout
func (s *MapService) ReapIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)
	s.mu.RLock()
	var idle []*sessionEntry
	for _, e := range s.sessions {
		if e.idleSince().Before(cutoff) {
			idle = append(idle, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range idle {
		s.remove(e)
	}
	if len(idle) > 0 {
		s.log.Info("reaped idle map sessions", logging.Int("count", len(idle)))
	}
	return len(idle)
}

// RunReaper reaps idle sessions every interval until ctx is done
func (s *MapService) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.ReapIdle()
		}
	}
}

// Close unmounts every session
func (s *MapService) Close() {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, e := range entries {
		e.session.Unmount()
	}
}

func (s *MapService) broadcast(reports []models.Report) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.session.SetReports(reports)
	}
}
