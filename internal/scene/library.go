// Package scene is the server-side mapping engine. It keeps an in-memory
// scene graph per map that the browser page mirrors with Leaflet, and feeds
// viewport events posted by the page back to the map session.
package scene

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRemoved       = errors.New("scene: map removed")
	ErrInvalidLayer  = errors.New("scene: layer not created by this library")
	ErrInvalidAsset  = errors.New("scene: invalid asset url")
	ErrInvalidMarker = errors.New("scene: invalid marker position")
)

// Assets are the browser-side library files the page loads
type Assets struct {
	LeafletJS  string `json:"leafletJs" mapstructure:"leaflet_js"`
	LeafletCSS string `json:"leafletCss" mapstructure:"leaflet_css"`
	HeatJS     string `json:"heatJs" mapstructure:"heat_js"`
}

// DefaultAssets pins the CDN builds the page is tested against
func DefaultAssets() Assets {
	return Assets{
		LeafletJS:  "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
		LeafletCSS: "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		HeatJS:     "https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js",
	}
}

func (a Assets) urls() []string {
	return []string{a.LeafletJS, a.LeafletCSS, a.HeatJS}
}

// Library implements mapview.Library on top of scene graphs
type Library struct {
	assets Assets
	rev    atomic.Uint64
	ids    atomic.Uint64

	mu          sync.Mutex
	defaultIcon *mapview.IconSpec
}

// Load validates the asset set and, if probe is non-nil, checks that every
// asset is reachable before handing out the library.
func Load(ctx context.Context, assets Assets, probe *http.Client) (*Library, error) {
	for _, raw := range assets.urls() {
		if err := validateURL(raw); err != nil {
			return nil, err
		}
	}
	if probe != nil {
		g, gctx := errgroup.WithContext(ctx)
		for _, raw := range assets.urls() {
			raw := raw
			g.Go(func() error { return probeAsset(gctx, probe, raw) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return &Library{assets: assets}, nil
}

// LoadFunc adapts Load for mapview.NewLoader
func LoadFunc(assets Assets, probe *http.Client) mapview.LoadFunc {
	return func(ctx context.Context) (mapview.Library, error) {
		lib, err := Load(ctx, assets, probe)
		if err != nil {
			return nil, err
		}
		return lib, nil
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAsset, raw, err)
	}
	if u.Path == "" || (u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w %q", ErrInvalidAsset, raw)
	}
	return nil
}

func probeAsset(ctx context.Context, client *http.Client, raw string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", raw, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe %s: status %d", raw, resp.StatusCode)
	}
	return nil
}

// Assets returns the asset set the library was loaded with
func (l *Library) Assets() Assets {
	return l.assets
}

// Revision increases on every scene mutation of any map
func (l *Library) Revision() uint64 {
	return l.rev.Load()
}

func (l *Library) bump() {
	l.rev.Add(1)
}

func (l *Library) nextID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, l.ids.Add(1))
}

// DefaultIcon returns the patched default marker icon, if any
func (l *Library) DefaultIcon() *mapview.IconSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.defaultIcon == nil {
		return nil
	}
	spec := *l.defaultIcon
	return &spec
}

func (l *Library) SetDefaultIcon(spec mapview.IconSpec) error {
	if spec.IconURL == "" {
		return fmt.Errorf("%w: empty icon url", ErrInvalidAsset)
	}
	l.mu.Lock()
	l.defaultIcon = &spec
	l.mu.Unlock()
	l.bump()
	return nil
}

func (l *Library) NewIcon(spec mapview.IconSpec) (mapview.Icon, error) {
	if spec.IconURL == "" {
		return nil, fmt.Errorf("%w: empty icon url", ErrInvalidAsset)
	}
	return &Icon{spec: spec}, nil
}

func (l *Library) NewMap(c mapview.Container, opts mapview.MapOptions) (mapview.Map, error) {
	m := &Map{
		id:           l.nextID("map"),
		lib:          l,
		opts:         opts,
		view:         View{Center: opts.Center, Zoom: opts.Zoom},
		handlers:     make(map[mapview.Event][]func()),
		zoomGestures: true,
	}
	if vp, ok := c.(*Viewport); ok {
		vp.attach(m)
	}
	l.bump()
	return m, nil
}

func (l *Library) NewTileLayer(opts mapview.TileOptions) (mapview.Layer, error) {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(opts.URLTemplate, p) {
			return nil, fmt.Errorf("%w: tile template %q lacks %s", ErrInvalidAsset, opts.URLTemplate, p)
		}
	}
	return &TileLayer{id: l.nextID("tiles"), opts: opts}, nil
}

func (l *Library) NewLayerGroup() (mapview.LayerGroup, error) {
	return &Group{id: l.nextID("markers"), lib: l}, nil
}

func (l *Library) NewHeatLayer(points []mapview.HeatPoint, opts mapview.HeatOptions) (mapview.HeatLayer, error) {
	h := &Heat{id: l.nextID("heat"), lib: l, opts: opts}
	h.points = append(h.points, points...)
	return h, nil
}

func (l *Library) NewMarker(at mapview.LatLng, icon mapview.Icon, popupHTML string) (mapview.Layer, error) {
	if !mapview.ValidLocation(&models.Location{Lat: at.Lat, Lng: at.Lng}) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMarker, at)
	}
	mk := &Marker{id: l.nextID("marker"), at: at, popup: popupHTML}
	if icon != nil {
		spec := icon.Spec()
		mk.icon = &spec
	}
	return mk, nil
}
