package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Walkscore WalkscoreConfig `yaml:"walkscore" mapstructure:"walkscore"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Tiger     TigerConfig     `yaml:"tiger" mapstructure:"tiger"`
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB     int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPass   string `yaml:"redis_password" mapstructure:"redis_password"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CensusConfig configures the Census data API clients.
type CensusConfig struct {
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	DataBaseURL     string  `yaml:"data_base_url" mapstructure:"data_base_url"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LatestYear      int     `yaml:"latest_year" mapstructure:"latest_year"`
	TrendYears      []int   `yaml:"trend_years" mapstructure:"trend_years"`
	ComponentsYear  int     `yaml:"components_year" mapstructure:"components_year"`
	FlowsYear       int     `yaml:"flows_year" mapstructure:"flows_year"`
	ProjectionYears int     `yaml:"projection_years" mapstructure:"projection_years"`
}

// GeocodeConfig configures the Census geocoder client.
type GeocodeConfig struct {
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WalkscoreConfig configures the Walk Score API client.
// An empty key disables walkability lookups entirely.
type WalkscoreConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig configures market record caching.
type CacheConfig struct {
	TTLDays int `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// BatchConfig configures batch address processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// TigerConfig configures TIGER/Line tract geometry loading.
type TigerConfig struct {
	Year    int    `yaml:"year" mapstructure:"year"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// GazetteerConfig configures Gazetteer land-area loading.
type GazetteerConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
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
	v.AddConfigPath("$HOME/.marketdata")

	// Environment
	v.SetEnvPrefix("MARKETDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("census.data_base_url", "https://api.census.gov/data")
	v.SetDefault("census.rate_limit", 10.0)
	v.SetDefault("census.timeout_secs", 30)
	v.SetDefault("census.latest_year", 2023)
	// 2020 is absent: the bureau never shipped standard estimates for it.
	v.SetDefault("census.trend_years", []int{2015, 2016, 2017, 2018, 2019, 2021, 2022, 2023})
	v.SetDefault("census.components_year", 2023)
	v.SetDefault("census.flows_year", 2022)
	v.SetDefault("census.projection_years", 3)
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("walkscore.base_url", "https://api.walkscore.com")
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("tiger.year", 2023)
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tiger.temp_dir", "/tmp/marketdata-tiger")
	v.SetDefault("gazetteer.url", "ftp://ftp2.census.gov/geo/docs/maps-data/data/gazetteer/2023_Gazetteer/2023_Gaz_tracts_national.zip")
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

// Validate checks that the configuration required for the given mode is present.
// Modes: serve, lookup, batch, migrate, tracts.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres", "sqlite":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		case "redis":
			if c.Store.RedisAddr == "" {
				problems = append(problems, "store.redis_addr is required")
			}
		default:
			problems = append(problems, "store.driver must be postgres, sqlite, or redis")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0")
		}
	case "lookup", "migrate":
		requireStore()
	case "batch":
		requireStore()
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			problems = append(problems, "batch.concurrency must be between 1 and 50")
		}
	case "tracts":
		if c.Store.Driver == "redis" {
			problems = append(problems, "tract loading requires a postgres or sqlite store")
		}
		requireStore()
		if c.Tiger.Year < 2010 {
			problems = append(problems, "tiger.year must be 2010 or later")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Cache.TTLDays < 1 {
		problems = append(problems, "cache.ttl_days must be >= 1")
	}
	if c.Census.LatestYear < 2010 {
		problems = append(problems, "census.latest_year must be 2010 or later")
	}
	if c.Census.ProjectionYears < 0 {
		problems = append(problems, "census.projection_years must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
