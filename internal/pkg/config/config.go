package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxConns     int32         `mapstructure:"max_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// DSN returns URL when set, otherwise a DSN assembled from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
	// TTL is how long a fetched raw payload may be served from cache, in seconds.
	TTL int `mapstructure:"ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ViewerConfig struct {
	TickRate        int           `mapstructure:"tick_rate"` // ticks per second
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxEntities     int           `mapstructure:"max_entities"`
}

// TickInterval converts TickRate into the period between ticks.
func (v ViewerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(v.TickRate)
}

// ViewportConfig maps a geographic rectangle onto a pixel viewport.
type ViewportConfig struct {
	GeoLeft   float64 `mapstructure:"geo_left"`
	GeoTop    float64 `mapstructure:"geo_top"`
	GeoRight  float64 `mapstructure:"geo_right"`
	GeoBottom float64 `mapstructure:"geo_bottom"`
	Width     float64 `mapstructure:"width"`
	Height    float64 `mapstructure:"height"`
}

// Load reads configuration from .env, an optional config file and
// environment variables. Extra paths are searched for config.yaml before
// the defaults.
func Load(service string, configPaths ...string) (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "soundlines")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "soundlines")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.query_timeout", 30*time.Second)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("valkey.ttl", 5)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("viewer.tick_rate", 60)
	v.SetDefault("viewer.refresh_interval", time.Duration(0))
	v.SetDefault("viewer.shutdown_timeout", 10*time.Second)
	v.SetDefault("viewer.max_entities", 20000)
	v.SetDefault("viewport.geo_left", 126.989223)
	v.SetDefault("viewport.geo_top", 37.579291)
	v.SetDefault("viewport.geo_right", 127.015067)
	v.SetDefault("viewport.geo_bottom", 37.563660)
	v.SetDefault("viewport.width", 1033)
	v.SetDefault("viewport.height", 800)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SOUNDLINES_DATABASE_HOST → database.host
	v.SetEnvPrefix("SOUNDLINES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// DATABASE_URL is the name the simulation tooling writes to .env.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "database.max_conns must be positive")
	}
	if c.Database.QueryTimeout < 0 {
		errs = append(errs, "database.query_timeout must not be negative")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Valkey.TTL < 0 {
		errs = append(errs, "valkey.ttl must not be negative")
	}
	if c.Viewer.TickRate <= 0 || c.Viewer.TickRate > 1000 {
		errs = append(errs, fmt.Sprintf("viewer.tick_rate must be 1-1000, got %d", c.Viewer.TickRate))
	}
	if c.Viewer.RefreshInterval < 0 {
		errs = append(errs, "viewer.refresh_interval must not be negative")
	}
	if c.Viewer.ShutdownTimeout <= 0 {
		errs = append(errs, "viewer.shutdown_timeout must be positive")
	}
	if c.Viewer.MaxEntities < 0 {
		errs = append(errs, "viewer.max_entities must not be negative")
	}
	if c.Viewport.GeoLeft == c.Viewport.GeoRight {
		errs = append(errs, "viewport.geo_left and viewport.geo_right must differ")
	}
	if c.Viewport.GeoTop == c.Viewport.GeoBottom {
		errs = append(errs, "viewport.geo_top and viewport.geo_bottom must differ")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, "viewport.width and viewport.height must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
