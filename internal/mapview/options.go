package mapview

import "time"

// Theme selects the base tile style
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var themeTiles = map[Theme]TileOptions{
	ThemeLight: {
		URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		MaxZoom:     19,
	},
	ThemeDark: {
		URLTemplate: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     19,
	},
}

// Options parameterizes a map session. The delays are workarounds for
// rendering races in the browser mapping library and can be tuned per
// deployment.
type Options struct {
	Theme            Theme  `mapstructure:"theme"`
	MobileBreakpoint int    `mapstructure:"mobile_breakpoint"`
	DefaultCenter    LatLng `mapstructure:"default_center"`
	DesktopZoom      int    `mapstructure:"desktop_zoom"`
	MobileZoom       int    `mapstructure:"mobile_zoom"`
	// TileURL overrides the theme's tile template when set.
	TileURL string `mapstructure:"tile_url"`

	ContainerPollInterval time.Duration `mapstructure:"container_poll_interval"`
	// MaxContainerPolls caps the container size wait; 0 means unbounded.
	MaxContainerPolls int           `mapstructure:"max_container_polls"`
	HeatInitDelay     time.Duration `mapstructure:"heat_init_delay"`
	HeatRefreshDelay  time.Duration `mapstructure:"heat_refresh_delay"`
	ResizeSettleDelay time.Duration `mapstructure:"resize_settle_delay"`
	ZoomSettleDelay   time.Duration `mapstructure:"zoom_settle_delay"`
	TouchReleaseDelay time.Duration `mapstructure:"touch_release_delay"`

	Heat HeatOptions `mapstructure:"heat"`
}

// DefaultOptions returns the stock configuration
func DefaultOptions() Options {
	return Options{
		Theme:                 ThemeLight,
		MobileBreakpoint:      768,
		DefaultCenter:         LatLng{Lat: 23.0225, Lng: 72.5714},
		DesktopZoom:           13,
		MobileZoom:            12,
		ContainerPollInterval: 100 * time.Millisecond,
		MaxContainerPolls:     600,
		HeatInitDelay:         200 * time.Millisecond,
		HeatRefreshDelay:      100 * time.Millisecond,
		ResizeSettleDelay:     100 * time.Millisecond,
		ZoomSettleDelay:       300 * time.Millisecond,
		TouchReleaseDelay:     time.Second,
		Heat: HeatOptions{
			Radius:     25,
			Blur:       15,
			MaxZoom:    17,
			MinOpacity: 0.4,
			Gradient: map[string]string{
				"0.4": "blue",
				"0.6": "lime",
				"0.8": "orange",
				"1.0": "red",
			},
		},
	}
}

// WithDefaults fills every zero field from DefaultOptions
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Theme == "" {
		o.Theme = d.Theme
	}
	if o.MobileBreakpoint <= 0 {
		o.MobileBreakpoint = d.MobileBreakpoint
	}
	if o.DefaultCenter == (LatLng{}) {
		o.DefaultCenter = d.DefaultCenter
	}
	if o.DesktopZoom <= 0 {
		o.DesktopZoom = d.DesktopZoom
	}
	if o.MobileZoom <= 0 {
		o.MobileZoom = d.MobileZoom
	}
	if o.ContainerPollInterval <= 0 {
		o.ContainerPollInterval = d.ContainerPollInterval
	}
	if o.MaxContainerPolls < 0 {
		o.MaxContainerPolls = 0
	}
	if o.HeatInitDelay < 0 {
		o.HeatInitDelay = d.HeatInitDelay
	}
	if o.HeatRefreshDelay < 0 {
		o.HeatRefreshDelay = d.HeatRefreshDelay
	}
	if o.ResizeSettleDelay < 0 {
		o.ResizeSettleDelay = d.ResizeSettleDelay
	}
	if o.ZoomSettleDelay < 0 {
		o.ZoomSettleDelay = d.ZoomSettleDelay
	}
	if o.TouchReleaseDelay < 0 {
		o.TouchReleaseDelay = d.TouchReleaseDelay
	}
	if o.Heat.Radius <= 0 {
		o.Heat = d.Heat
	}
	return o
}

// Tiles resolves the base tile layer for the configured theme
func (o Options) Tiles() TileOptions {
	t, ok := themeTiles[o.Theme]
	if !ok {
		t = themeTiles[ThemeLight]
	}
	if o.TileURL != "" {
		t.URLTemplate = o.TileURL
	}
	return t
}

// IsMobile applies the single viewport breakpoint
func (o Options) IsMobile(viewportWidth int) bool {
	return viewportWidth > 0 && viewportWidth < o.MobileBreakpoint
}

const leafletImages = "https://unpkg.com/leaflet@1.9.4/dist/images/"

// DefaultIconSpec points the engine's default marker at the CDN copy of
// the stock images, which bundlers otherwise fail to resolve.
func DefaultIconSpec() IconSpec {
	return IconSpec{
		IconURL:       leafletImages + "marker-icon.png",
		IconRetinaURL: leafletImages + "marker-icon-2x.png",
		ShadowURL:     leafletImages + "marker-shadow.png",
		Size:          [2]int{25, 41},
		Anchor:        [2]int{12, 41},
		PopupAnchor:   [2]int{1, -34},
	}
}

// ReportIconSpec is the custom marker used for report pins
func ReportIconSpec() IconSpec {
	return IconSpec{
		IconURL:     "/static/report-pin.svg",
		ShadowURL:   leafletImages + "marker-shadow.png",
		Size:        [2]int{30, 42},
		Anchor:      [2]int{15, 42},
		PopupAnchor: [2]int{0, -36},
	}
}
