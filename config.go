package roadusage

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type BoundConfig struct {
	MinLon float64 `yaml:"min_lon" validate:"gte=-180,lte=180"`
	MinLat float64 `yaml:"min_lat" validate:"gte=-90,lte=90"`
	MaxLon float64 `yaml:"max_lon" validate:"gte=-180,lte=180,gtefield=MinLon"`
	MaxLat float64 `yaml:"max_lat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	Margin float64 `yaml:"margin" validate:"gte=0"`
}

// Bound returns orb representation of bounding box (without margin)
func (cfg BoundConfig) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{cfg.MinLon, cfg.MinLat}, Max: orb.Point{cfg.MaxLon, cfg.MaxLat}}
}

type NetworkConfig struct {
	Path      string       `yaml:"path"`
	KindField string       `yaml:"kind_field" validate:"required"`
	NameField string       `yaml:"name_field"`
	Kinds     []string     `yaml:"kinds"`
	Bound     *BoundConfig `yaml:"bound"`
}

type TripsConfig struct {
	Path       string      `yaml:"path"`
	TimeLayout string      `yaml:"time_layout" validate:"required"`
	TimeZone   string      `yaml:"time_zone"`
	RowLimit   int         `yaml:"row_limit" validate:"gte=0"`
	Columns    TripColumns `yaml:"columns"`
}

type MatchingConfig struct {
	Workers       int     `yaml:"workers" validate:"gte=1"`
	MaxErrorRatio float64 `yaml:"max_error_ratio" validate:"gt=0,lte=0.1"`
	Engine        string  `yaml:"engine" validate:"oneof=astar ch"`
	GridCellSize  float64 `yaml:"grid_cell_size" validate:"gte=0"`
	NodePrecision int     `yaml:"node_precision" validate:"gte=0,lte=12"`
}

type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"omitempty,oneof=csv geojson shp"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Config is configuration of matching run
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Trips    TripsConfig    `yaml:"trips"`
	Matching MatchingConfig `yaml:"matching"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns configuration for Chicago e-scooter trips
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Path:      "illinois_highway.shp",
			KindField: DEFAULT_KIND_FIELD,
			NameField: DEFAULT_NAME_FIELD,
			Kinds:     DefaultRoadKinds,
			Bound: &BoundConfig{
				MinLon: -87.89370076,
				MinLat: 41.66013746994182,
				MaxLon: -87.5349023379022,
				MaxLat: 42.00962338,
				Margin: 0.1,
			},
		},
		Trips: TripsConfig{
			Path:       "e_scooter_trips.csv",
			TimeLayout: TRIP_TIME_LAYOUT,
			Columns:    DefaultTripColumns,
		},
		Matching: MatchingConfig{
			Workers:       1,
			MaxErrorRatio: DEFAULT_MAX_ERROR_RATIO,
			Engine:        ENGINE_ASTAR.String(),
			GridCellSize:  DEFAULT_GRID_CELL_SIZE,
			NodePrecision: DEFAULT_NODE_PRECISION,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads YAML file on top of defaults, applies ROADUSAGE_* environment variables and validates result.
// Empty path means defaults with environment only
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Can't read config")
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "Can't parse config")
		}
	}
	err := cfg.applyEnv()
	if err != nil {
		return nil, err
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	if v := os.Getenv("ROADUSAGE_NETWORK"); v != "" {
		cfg.Network.Path = v
	}
	if v := os.Getenv("ROADUSAGE_TRIPS"); v != "" {
		cfg.Trips.Path = v
	}
	if v := os.Getenv("ROADUSAGE_OUTPUT"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("ROADUSAGE_ENGINE"); v != "" {
		cfg.Matching.Engine = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("ROADUSAGE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.Errorf("invalid ROADUSAGE_WORKERS: %q", v)
		}
		cfg.Matching.Workers = n
	}
	if v := os.Getenv("ROADUSAGE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("ROADUSAGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

// Validate checks configuration values
func (cfg *Config) Validate() error {
	v := validator.New()
	err := v.Struct(cfg)
	if err != nil {
		return errors.Wrap(err, "Invalid config")
	}
	_, err = cfg.Location()
	return err
}

// Location returns time zone of trip timestamps. UTC when not set
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Trips.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(cfg.Trips.TimeZone)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid time zone")
	}
	return loc, nil
}

// LoaderOptions returns road network loader options
func (cfg *Config) LoaderOptions() []func(*NetworkLoader) {
	options := []func(*NetworkLoader){
		WithKindField(cfg.Network.KindField),
		WithNameField(cfg.Network.NameField),
		WithRoadKinds(cfg.Network.Kinds),
	}
	if cfg.Network.Bound != nil {
		options = append(options, WithCropBound(cfg.Network.Bound.Bound(), cfg.Network.Bound.Margin))
	}
	return options
}

// MatcherOptions returns matcher options. Engine must be valid
func (cfg *Config) MatcherOptions() ([]func(*Matcher), error) {
	engine, err := ParsePathEngine(cfg.Matching.Engine)
	if err != nil {
		return nil, err
	}
	return []func(*Matcher){
		WithWorkers(cfg.Matching.Workers),
		WithMaxErrorRatio(cfg.Matching.MaxErrorRatio),
		WithPathEngine(engine),
		WithGridCellSize(cfg.Matching.GridCellSize),
		WithNodePrecision(cfg.Matching.NodePrecision),
	}, nil
}
