package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	GeneratorNanoID  = "nanoid"
	GeneratorShortID = "shortid"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string     `yaml:"env"`
	LogLevel   string     `yaml:"log_level"`
	ShortCode  ShortCode  `yaml:"short_code"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Postgres   Postgres   `yaml:"postgres"`
	Provider   Provider   `yaml:"provider"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Kafka      Kafka      `yaml:"kafka"`
	QR         QR         `yaml:"qr"`
}

type ShortCode struct {
	Generator string `yaml:"generator"`
	Length    int    `yaml:"length"`
}

var defaultShortCode = ShortCode{
	Generator: GeneratorNanoID,
	Length:    7,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

var defaultHTTPServer = HTTPServer{
	Port:           5000,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   15 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	AllowedOrigins: []string{"http://localhost:3000"},
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver string `yaml:"driver"`
}

type Postgres struct {
	URL             string        `yaml:"url"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "file://migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

// DSN returns URL when it is set and builds a connection string from the parts otherwise.
func (p *Postgres) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Provider struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Domain  string        `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
}

var defaultProvider = Provider{
	BaseURL: "https://api.tinyurl.com",
	Domain:  "tinyurl.com",
	Timeout: 10 * time.Second,
}

// RateLimit configures the per-client limiter of provider-backed endpoints.
// A zero RPS turns limiting off.
type RateLimit struct {
	RPS   float64       `yaml:"rps"`
	Burst int           `yaml:"burst"`
	TTL   time.Duration `yaml:"ttl"`
}

var defaultRateLimit = RateLimit{
	RPS:   1,
	Burst: 5,
	TTL:   10 * time.Minute,
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

var defaultKafka = Kafka{
	Topic: "tinylink.url-events",
}

// Enabled reports whether link events should be published.
func (k *Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

type QR struct {
	Size int `yaml:"size"`
}

var defaultQR = QR{
	Size: 256,
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.ShortCode = defaultShortCode
	cfg.HTTPServer = defaultHTTPServer
	cfg.HTTPServer.AllowedOrigins = append([]string(nil), defaultHTTPServer.AllowedOrigins...)
	cfg.Storage = Storage{Driver: StorageDriverPostgres}
	cfg.Postgres = defaultPostgres
	cfg.Provider = defaultProvider
	cfg.RateLimit = defaultRateLimit
	cfg.Kafka = defaultKafka
	cfg.QR = defaultQR
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		cfg.Env = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v := firstEnv("DATABASE_URL", "MONGODB_URI"); v != "" {
		cfg.Postgres.URL = v
	}
	if v, ok := os.LookupEnv("TINYURL_API_KEY"); ok {
		cfg.Provider.APIKey = v
	}
	if v, ok := os.LookupEnv("FRONTEND_URL"); ok && v != "" {
		cfg.HTTPServer.AllowedOrigins = splitAndTrim(v)
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT must be a number: %q", ErrInvalidConfig, v)
		}
		cfg.HTTPServer.Port = port
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v, ok := os.LookupEnv("KAFKA_TOPIC"); ok && v != "" {
		cfg.Kafka.Topic = v
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func splitAndTrim(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func hasPostgresScheme(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Validate reports the first setting the application cannot start with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	switch c.ShortCode.Generator {
	case GeneratorNanoID:
		if c.ShortCode.Length <= 0 {
			return fmt.Errorf("%w: short_code.length must be positive", ErrInvalidConfig)
		}
	case GeneratorShortID:
	default:
		return fmt.Errorf("%w: unknown short_code.generator %q", ErrInvalidConfig, c.ShortCode.Generator)
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Postgres.URL != "" && !hasPostgresScheme(c.Postgres.URL) {
			return fmt.Errorf("%w: postgres url must start with postgres:// or postgresql:// (check DATABASE_URL and MONGODB_URI)", ErrInvalidConfig)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Provider.APIKey == "" {
		return fmt.Errorf("%w: provider.api_key is required", ErrInvalidConfig)
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("%w: kafka.topic is required when brokers are set", ErrInvalidConfig)
	}

	return nil
}
