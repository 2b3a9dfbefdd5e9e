package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPort          = 4567
	DefaultDataFile      = "weatherInfo.json"
	DefaultWorkers       = 5
	DefaultReadTimeout   = 5 * time.Second
	DefaultAcceptTimeout = 10 * time.Second
	DefaultMaxStations   = 20
	DefaultTTL           = 30 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// Config holds the configuration parsed from the `server:` section of the
// YAML config file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all aggregation-server settings.
type ServerConfig struct {
	// Port is the TCP port the aggregation protocol listens on (default 4567).
	Port int `yaml:"port"`

	// AdminPort is the port for the admin HTTP surface (/metrics,
	// /ws/stream and /api/v1/*). 0 disables the admin listener (the default).
	AdminPort int `yaml:"admin_port"`

	// DataFile is the path of the on-disk snapshot.
	DataFile string `yaml:"data_file"`

	// Workers is the size of the fixed connection-handling pool.
	Workers int `yaml:"workers"`

	// ReadTimeout is the per-socket read deadline.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// AcceptTimeout bounds each accept call so shutdown is noticed promptly.
	AcceptTimeout time.Duration `yaml:"accept_timeout"`

	// Store controls in-memory observation retention.
	Store StoreConfig `yaml:"store"`

	// Alerts holds threshold rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the
	// deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression over one numeric observation field:
	// "air_temp > 40", "wind_spd_kmh >= 90".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// StoreConfig controls in-memory observation retention.
type StoreConfig struct {
	// MaxStations is the hard bound on retained stations.
	MaxStations int `yaml:"max_stations"`

	// TTL is how long an observation stays visible after its last update.
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is how often the background sweeper expires entries.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults, then environment overrides apply, then validation runs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied, for running without a config file.
func Default() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			DataFile:      DefaultDataFile,
			Workers:       DefaultWorkers,
			ReadTimeout:   DefaultReadTimeout,
			AcceptTimeout: DefaultAcceptTimeout,
			Store: StoreConfig{
				MaxStations:   DefaultMaxStations,
				TTL:           DefaultTTL,
				SweepInterval: DefaultSweepInterval,
			},
		},
	}
}

// applyEnv resolves overrides from the environment, loading an optional .env
// file first. Unset or unparsable variables leave the config untouched.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("AGG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AGG_DATA_FILE"); v != "" {
		cfg.Server.DataFile = v
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := &cfg.Server
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [0, 65535]", s.Port)
	}
	if s.AdminPort < 0 || s.AdminPort > 65535 {
		return fmt.Errorf("server.admin_port %d is out of range [0, 65535]", s.AdminPort)
	}
	if s.DataFile == "" {
		return fmt.Errorf("server.data_file must not be empty")
	}
	if s.Workers <= 0 {
		return fmt.Errorf("server.workers must be positive")
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if s.AcceptTimeout <= 0 {
		return fmt.Errorf("server.accept_timeout must be positive")
	}
	if s.Store.MaxStations <= 0 {
		return fmt.Errorf("server.store.max_stations must be positive")
	}
	if s.Store.TTL <= 0 {
		return fmt.Errorf("server.store.ttl must be positive")
	}
	if s.Store.SweepInterval <= 0 {
		return fmt.Errorf("server.store.sweep_interval must be positive")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d].name must not be empty", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d].condition must not be empty", i)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d].type %q unknown: want slack|http", i, w.Type)
		}
	}
	return nil
}
