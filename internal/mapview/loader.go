package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jengzang/civic-map/internal/logging"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotBrowser is returned when no browser context exists to draw in
	ErrNotBrowser = errors.New("mapview: not running in a browser context")
	// ErrLoad wraps any failure to load the mapping library
	ErrLoad = errors.New("mapview: map library failed to load")
)

// Environment tells the loader whether it runs inside a browser
type Environment interface {
	IsBrowser() bool
}

// EnvironmentFunc adapts a plain function to Environment
type EnvironmentFunc func() bool

// IsBrowser implements Environment
func (f EnvironmentFunc) IsBrowser() bool { return f() }

// LoadFunc fetches the mapping engine and its heat extension
type LoadFunc func(ctx context.Context) (Library, error)

// defaultIconPatch guards the engine-wide default icon override. It is
// applied at most once per process, on the first successful load.
var defaultIconPatch struct {
	sync.Mutex
	done bool
}

func patchDefaultIcon(lib Library, spec IconSpec) error {
	defaultIconPatch.Lock()
	defer defaultIconPatch.Unlock()
	if defaultIconPatch.done {
		return nil
	}
	if err := lib.SetDefaultIcon(spec); err != nil {
		return err
	}
	defaultIconPatch.done = true
	return nil
}

// Loader lazily loads the mapping library and shares it between sessions.
// Concurrent loads collapse into one; a failed load is retried by the next
// caller.
type Loader struct {
	load        LoadFunc
	defaultIcon IconSpec
	markerIcon  IconSpec
	log         logging.Logger

	group singleflight.Group

	mu   sync.Mutex
	lib  Library
	icon Icon
}

// NewLoader creates a loader around load
func NewLoader(load LoadFunc, log logging.Logger) *Loader {
	if log == nil {
		log = logging.NewNop()
	}
	return &Loader{
		load:        load,
		defaultIcon: DefaultIconSpec(),
		markerIcon:  ReportIconSpec(),
		log:         log.Named("loader"),
	}
}

// WithIcons overrides the default and report marker icons
func (l *Loader) WithIcons(defaultIcon, markerIcon IconSpec) *Loader {
	l.defaultIcon = defaultIcon
	l.markerIcon = markerIcon
	return l
}

type loaded struct {
	lib  Library
	icon Icon
}

// Load returns the library handle and the shared report marker icon. The
// icon may be nil when it failed to build; markers then use the default.
func (l *Loader) Load(ctx context.Context, env Environment) (Library, Icon, error) {
	if env == nil || !env.IsBrowser() {
		return nil, nil, ErrNotBrowser
	}

	l.mu.Lock()
	if l.lib != nil {
		lib, icon := l.lib, l.icon
		l.mu.Unlock()
		return lib, icon, nil
	}
	l.mu.Unlock()

	ch := l.group.DoChan("library", func() (interface{}, error) {
		return l.loadOnce(ctx)
	})

	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %w", ErrLoad, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		v := res.Val.(loaded)
		return v.lib, v.icon, nil
	}
}

func (l *Loader) loadOnce(ctx context.Context) (loaded, error) {
	lib, err := l.load(ctx)
	if err == nil && lib == nil {
		err = errors.New("loader returned no library")
	}
	if err != nil {
		l.log.Error("map library load failed", logging.Err(err))
		return loaded{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err := patchDefaultIcon(lib, l.defaultIcon); err != nil {
		l.log.Warn("default icon patch failed", logging.Err(err))
	}

	icon, err := lib.NewIcon(l.markerIcon)
	if err != nil {
		l.log.Warn("report marker icon failed, using default icon", logging.Err(err))
		icon = nil
	}

	l.mu.Lock()
	l.lib, l.icon = lib, icon
	l.mu.Unlock()

	l.log.Info("map library loaded")
	return loaded{lib: lib, icon: icon}, nil
}
