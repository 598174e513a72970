package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// MapConfig configures the projection, tile grid, and viewport bounds.
type MapConfig struct {
	CenterLng        float64 `yaml:"center_lng" mapstructure:"center_lng"`
	CenterLat        float64 `yaml:"center_lat" mapstructure:"center_lat"`
	Scale            float64 `yaml:"scale" mapstructure:"scale"`
	TranslateX       float64 `yaml:"translate_x" mapstructure:"translate_x"`
	TranslateY       float64 `yaml:"translate_y" mapstructure:"translate_y"`
	CanvasSize       float64 `yaml:"canvas_size" mapstructure:"canvas_size"`
	PathPrecision    int     `yaml:"path_precision" mapstructure:"path_precision"`
	GridSize         int     `yaml:"grid_size" mapstructure:"grid_size"`
	ZoomStep         float64 `yaml:"zoom_step" mapstructure:"zoom_step"`
	MinZoom          float64 `yaml:"min_zoom" mapstructure:"min_zoom"`
	MaxZoom          float64 `yaml:"max_zoom" mapstructure:"max_zoom"`
	MinimapThreshold float64 `yaml:"minimap_threshold" mapstructure:"minimap_threshold"`
	TransitionMS     int     `yaml:"transition_ms" mapstructure:"transition_ms"`
}

// SourceConfig selects where boundary features are fetched from.
type SourceConfig struct {
	Kind              string  `yaml:"kind" mapstructure:"kind"` // file, http, shapefile, postgres
	Path              string  `yaml:"path" mapstructure:"path"`
	URL               string  `yaml:"url" mapstructure:"url"`
	Table             string  `yaml:"table" mapstructure:"table"`
	NameField         string  `yaml:"name_field" mapstructure:"name_field"`
	ISOField          string  `yaml:"iso_field" mapstructure:"iso_field"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the PostGIS connection used by the postgres source.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReloadPerMinute  int      `yaml:"reload_per_minute" mapstructure:"reload_per_minute"`
	TileCacheSize    int      `yaml:"tile_cache_size" mapstructure:"tile_cache_size"`
	TileCacheTTLMins int      `yaml:"tile_cache_ttl_mins" mapstructure:"tile_cache_ttl_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The projection is tuned so continental Africa fits the canonical box.
	v.SetDefault("map.center_lng", 17.0)
	v.SetDefault("map.center_lat", 2.0)
	v.SetDefault("map.scale", 650.0)
	v.SetDefault("map.translate_x", 500.0)
	v.SetDefault("map.translate_y", 500.0)
	v.SetDefault("map.canvas_size", 1000.0)
	v.SetDefault("map.path_precision", 2)
	v.SetDefault("map.grid_size", 8)
	v.SetDefault("map.zoom_step", 0.2)
	v.SetDefault("map.min_zoom", 0.5)
	v.SetDefault("map.max_zoom", 3.0)
	v.SetDefault("map.minimap_threshold", 2.5)
	v.SetDefault("map.transition_ms", 300)
	v.SetDefault("source.kind", "file")
	v.SetDefault("source.path", "data/africa.geojson")
	v.SetDefault("source.table", "geo.countries")
	v.SetDefault("source.name_field", "name")
	v.SetDefault("source.iso_field", "iso_code")
	v.SetDefault("source.requests_per_second", 1.0)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.reload_per_minute", 6)
	v.SetDefault("server.tile_cache_size", 1024)
	v.SetDefault("server.tile_cache_ttl_mins", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
// Every mode needs a usable map and source; "serve" also needs a port.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "project", "tiles":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Map.CanvasSize <= 0 {
		errs = append(errs, "map.canvas_size must be > 0")
	}
	if c.Map.Scale <= 0 {
		errs = append(errs, "map.scale must be > 0")
	}
	if c.Map.GridSize < 1 || c.Map.GridSize > 256 {
		errs = append(errs, "map.grid_size must be between 1 and 256")
	}
	if c.Map.MinZoom >= c.Map.MaxZoom {
		errs = append(errs, "map.min_zoom must be < map.max_zoom")
	}
	if c.Map.ZoomStep <= 0 {
		errs = append(errs, "map.zoom_step must be > 0")
	}
	if c.Map.TransitionMS < 0 {
		errs = append(errs, "map.transition_ms must be >= 0")
	}

	switch c.Source.Kind {
	case "file", "shapefile":
		if c.Source.Path == "" {
			errs = append(errs, "source.path is required")
		}
	case "http":
		if c.Source.URL == "" {
			errs = append(errs, "source.url is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("source.kind %q is not one of file, http, shapefile, postgres", c.Source.Kind))
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
