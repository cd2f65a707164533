package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/civic-map/internal/database"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/reportsapi"
	"github.com/jengzang/civic-map/internal/scene"
	"github.com/spf13/viper"
)

const envPrefix = "CIVICMAP"

// Config is the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  database.Config `mapstructure:"database"`
	Log       logging.Config  `mapstructure:"log"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Map       MapConfig       `mapstructure:"map"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ReportsConfig configures the upstream report API and refresh loop
type ReportsConfig struct {
	reportsapi.Config `mapstructure:",squash"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	CacheEnabled      bool          `mapstructure:"cache_enabled"`
}

// AuthConfig configures session tokens
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// MapConfig configures map sessions and the page
type MapConfig struct {
	Title        string          `mapstructure:"title"`
	Options      mapview.Options `mapstructure:"options"`
	Assets       scene.Assets    `mapstructure:"assets"`
	ProbeAssets  bool            `mapstructure:"probe_assets"`
	IdleTimeout  time.Duration   `mapstructure:"idle_timeout"`
	ReapInterval time.Duration   `mapstructure:"reap_interval"`
	MaxSessions  int             `mapstructure:"max_sessions"`
	PagePoll     time.Duration   `mapstructure:"page_poll"`
}

// RateLimitConfig bounds viewport events per page
type RateLimitConfig struct {
	Events int           `mapstructure:"events"`
	Window time.Duration `mapstructure:"window"`
}

const insecureSecret = "your-secret-key-change-in-production"

func setDefaults(v *viper.Viper) {
	opts := mapview.DefaultOptions()
	assets := scene.DefaultAssets()

	defaults := map[string]interface{}{
		"server.port":             ":8080",
		"server.mode":             "release",
		"server.shutdown_timeout": 10 * time.Second,

		"database.path":           "./data/civicmap.db",
		"database.max_open_conns": 10,

		"log.level":  "info",
		"log.format": "json",

		"reports.base_url":         "http://localhost:5000/api",
		"reports.token":            "",
		"reports.timeout":          10 * time.Second,
		"reports.max_retries":      3,
		"reports.refresh_interval": time.Minute,
		"reports.cache_enabled":    true,

		"auth.jwt_secret": insecureSecret,
		"auth.token_ttl":  12 * time.Hour,

		"map.title":         "Civic reports",
		"map.probe_assets":  false,
		"map.idle_timeout":  10 * time.Minute,
		"map.reap_interval": time.Minute,
		"map.max_sessions":  1000,
		"map.page_poll":     500 * time.Millisecond,

		"map.assets.leaflet_js":  assets.LeafletJS,
		"map.assets.leaflet_css": assets.LeafletCSS,
		"map.assets.heat_js":     assets.HeatJS,

		"map.options.theme":                   string(opts.Theme),
		"map.options.mobile_breakpoint":       opts.MobileBreakpoint,
		"map.options.default_center.lat":      opts.DefaultCenter.Lat,
		"map.options.default_center.lng":      opts.DefaultCenter.Lng,
		"map.options.desktop_zoom":            opts.DesktopZoom,
		"map.options.mobile_zoom":             opts.MobileZoom,
		"map.options.tile_url":                "",
		"map.options.container_poll_interval": opts.ContainerPollInterval,
		"map.options.max_container_polls":     opts.MaxContainerPolls,
		"map.options.heat_init_delay":         opts.HeatInitDelay,
		"map.options.heat_refresh_delay":      opts.HeatRefreshDelay,
		"map.options.resize_settle_delay":     opts.ResizeSettleDelay,
		"map.options.zoom_settle_delay":       opts.ZoomSettleDelay,
		"map.options.touch_release_delay":     opts.TouchReleaseDelay,
		"map.options.heat.radius":             opts.Heat.Radius,
		"map.options.heat.blur":               opts.Heat.Blur,
		"map.options.heat.max_zoom":           opts.Heat.MaxZoom,
		"map.options.heat.min_opacity":        opts.Heat.MinOpacity,

		"rate_limit.events": 120,
		"rate_limit.window": time.Minute,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads configPath when non-empty, then applies CIVICMAP_* env
// overrides on top of the defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	cfg.Map.Options = cfg.Map.Options.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the values the service cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Reports.BaseURL == "" {
		errs = append(errs, errors.New("reports.base_url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	switch c.Map.Options.Theme {
	case mapview.ThemeLight, mapview.ThemeDark:
	default:
		errs = append(errs, fmt.Errorf("map.options.theme %q is not light or dark", c.Map.Options.Theme))
	}
	if c.RateLimit.Events <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.events and rate_limit.window must be positive"))
	}
	return errors.Join(errs...)
}

// InsecureSecret reports whether the placeholder signing secret is in use
func (c *Config) InsecureSecret() bool {
	return c.Auth.JWTSecret == insecureSecret
}
