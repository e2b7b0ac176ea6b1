package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	TransportNone     = "none"
	TransportKafka    = "kafka"
	TransportRabbitMQ = "rabbitmq"
)

type Config struct {
	Environment string           `yaml:"environment" env:"APP_ENV"`
	HTTP        HTTPConfig       `yaml:"http"`
	Store       string           `yaml:"store" env:"STORE"`
	Database    DatabaseConfig   `yaml:"database"`
	Scheduling  SchedulingConfig `yaml:"scheduling"`
	Auth        AuthConfig       `yaml:"auth"`
	Google      GoogleConfig     `yaml:"google"`
	Redis       RedisConfig      `yaml:"redis"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Events      EventsConfig     `yaml:"events"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	RabbitMQ    RabbitMQConfig   `yaml:"rabbitmq"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

type SchedulingConfig struct {
	Timezone     string `yaml:"timezone" env:"SCHEDULING_TIMEZONE"`
	HorizonWeeks int    `yaml:"horizon_weeks" env:"SCHEDULING_HORIZON_WEEKS"`
}

type AuthConfig struct {
	StaticTokens []string `yaml:"static_tokens" env:"STATIC_TOKENS" envSeparator:","`
	JWTSecret    string   `yaml:"jwt_secret" env:"JWT_HMAC_SECRET"`
}

type GoogleConfig struct {
	ClientID     string        `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL"`
	CalendarID   string        `yaml:"calendar_id"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// Enabled reports whether the OAuth client is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Limit    int           `yaml:"limit"`
	Window   time.Duration `yaml:"window"`
	FailOpen bool          `yaml:"fail_open"`
}

type EventsConfig struct {
	Transport string        `yaml:"transport" env:"EVENTS_TRANSPORT"`
	PollEvery time.Duration `yaml:"poll_every"`
	BatchSize int           `yaml:"batch_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLING_RATIO"`
}

func Default() Config {
	return Config{
		Environment: "dev",
		HTTP:        HTTPConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		Store:       StoreMemory,
		Database:    DatabaseConfig{MaxConns: 10, MinConns: 1},
		Scheduling:  SchedulingConfig{Timezone: "UTC", HorizonWeeks: 2},
		Google:      GoogleConfig{CalendarID: "primary", CacheSize: 256, CacheTTL: 5 * time.Minute},
		RateLimit:   RateLimitConfig{Enabled: true, Limit: 30, Window: time.Minute, FailOpen: true},
		Events:      EventsConfig{Transport: TransportNone, PollEvery: 2 * time.Second, BatchSize: 50},
		RabbitMQ:    RabbitMQConfig{Exchange: "scheduling"},
		Telemetry:   TelemetryConfig{Endpoint: "localhost:4317", SampleRatio: 1},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	if c.Scheduling.HorizonWeeks <= 0 {
		errs = append(errs, fmt.Errorf("scheduling.horizon_weeks must be positive, got %d", c.Scheduling.HorizonWeeks))
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduling.timezone: %w", err))
	}

	switch c.Events.Transport {
	case TransportNone:
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka transport"))
		}
	case TransportRabbitMQ:
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq.url is required for the rabbitmq transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events transport %q", c.Events.Transport))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.limit and rate_limit.window must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the timezone weeks and availability rules are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func (c *Config) Addr() string {
	return ":" + c.HTTP.Port
}
