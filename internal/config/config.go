package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app" toml:"app"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Redis         RedisConfig         `yaml:"redis" toml:"redis"`
	API           APIConfig           `yaml:"api" toml:"api"`
	Booking       BookingConfig       `yaml:"booking" toml:"booking"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Google        GoogleConfig        `yaml:"google" toml:"google"`
	Worker        WorkerConfig        `yaml:"worker" toml:"worker"`
	Backup        BackupConfig        `yaml:"backup" toml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" toml:"monitoring"`
	Tracing       TracingConfig       `yaml:"tracing" toml:"tracing"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
	CatalogPath   string              `yaml:"catalog_path" toml:"catalog_path"`
}

type AppConfig struct {
	Name        string `yaml:"name" toml:"name"`
	Environment string `yaml:"environment" toml:"environment"`
	Version     string `yaml:"version" toml:"version"`
}

type DatabaseConfig struct {
	Driver       string         `yaml:"driver" toml:"driver"`
	Path         string         `yaml:"path" toml:"path"`
	Postgres     PostgresConfig `yaml:"postgres" toml:"postgres"`
	MaxOpenConns int            `yaml:"max_open_conns" toml:"max_open_conns"`
	BusyTimeout  int            `yaml:"busy_timeout_ms" toml:"busy_timeout_ms"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	DBName   string `yaml:"dbname" toml:"dbname"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

// DSN renders a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Address  string `yaml:"address" toml:"address"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	PoolSize int    `yaml:"pool_size" toml:"pool_size"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled" toml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http" toml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc" toml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth" toml:"auth"`
	Session   SessionConfig      `yaml:"session" toml:"session"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Port    int  `yaml:"port" toml:"port"`
}

type APIGRPCConfig struct {
	Enabled                  bool         `yaml:"enabled" toml:"enabled"`
	Port                     int          `yaml:"port" toml:"port"`
	Reflection               bool         `yaml:"reflection" toml:"reflection"`
	MaxRecvMsgBytes          int          `yaml:"max_recv_msg_bytes" toml:"max_recv_msg_bytes"`
	MaxConnectionIdleSeconds int          `yaml:"max_connection_idle_seconds" toml:"max_connection_idle_seconds"`
	ShutdownGraceSeconds     int          `yaml:"shutdown_grace_seconds" toml:"shutdown_grace_seconds"`
	TLS                      APITLSConfig `yaml:"tls" toml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled" toml:"enabled"`
	CertFile          string `yaml:"cert_file" toml:"cert_file"`
	KeyFile           string `yaml:"key_file" toml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file" toml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert" toml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled" toml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key" toml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra" toml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys" toml:"api_keys"`
}

// APIClientKey is an integration or admin credential. An empty CompanyID grants access to
// every company; an empty Permissions list grants every permission.
type APIClientKey struct {
	Key         string   `yaml:"key" toml:"key"`
	Extra       string   `yaml:"extra" toml:"extra"`
	Name        string   `yaml:"name" toml:"name"`
	CompanyID   string   `yaml:"company_id" toml:"company_id"`
	Permissions []string `yaml:"permissions" toml:"permissions"`
}

// SessionConfig verifies client session tokens (HS256 JWT) issued by the front end.
type SessionConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	Issuer    string `yaml:"issuer" toml:"issuer"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps" toml:"rps"`
	Burst int     `yaml:"burst" toml:"burst"`
}

type BookingConfig struct {
	RateLimitAttempts      int `yaml:"rate_limit_attempts" toml:"rate_limit_attempts"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds" toml:"rate_limit_window_seconds"`
	SlotGuardTTLSeconds    int `yaml:"slot_guard_ttl_seconds" toml:"slot_guard_ttl_seconds"`
}

type NotificationsConfig struct {
	TimeoutSeconds int            `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Webhook        WebhookConfig  `yaml:"webhook" toml:"webhook"`
	Telegram       TelegramConfig `yaml:"telegram" toml:"telegram"`
	Kafka          KafkaConfig    `yaml:"kafka" toml:"kafka"`
}

type WebhookConfig struct {
	URL    string `yaml:"url" toml:"url"`
	Secret string `yaml:"secret" toml:"secret"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`
	Debug    bool   `yaml:"debug" toml:"debug"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id" toml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name" toml:"sheet_name"`
}

type WorkerConfig struct {
	MaxRetries          int     `yaml:"max_retries" toml:"max_retries"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds" toml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds" toml:"max_delay_seconds"`
	BackoffFactor       float64 `yaml:"backoff_factor" toml:"backoff_factor"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
	BatchSize           int     `yaml:"batch_size" toml:"batch_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	Schedule      string `yaml:"schedule" toml:"schedule"`
	RetentionDays int    `yaml:"retention_days" toml:"retention_days"`
	StoragePath   string `yaml:"storage_path" toml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled" toml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port" toml:"prometheus_port"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	ServiceName string  `yaml:"service_name" toml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
	Insecure    bool    `yaml:"insecure" toml:"insecure"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Format   string `yaml:"format" toml:"format"`
	Output   string `yaml:"output" toml:"output"`
	FilePath string `yaml:"file_path" toml:"file_path"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Load reads the config file at configPath. A .env file in the working directory is loaded
// first when present, and ${VAR} references are expanded before decoding. Files ending in
// .toml are decoded as TOML, anything else as YAML.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &config); err != nil {
			return nil, fmt.Errorf("decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("database.postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.API.HTTP.Enabled && c.API.Session.JWTSecret == "" {
		return errors.New("api.session.jwt_secret is required when the HTTP API is enabled")
	}

	if c.Booking.RateLimitAttempts < 0 || c.Booking.RateLimitWindowSeconds < 0 || c.Booking.SlotGuardTTLSeconds < 0 {
		return errors.New("booking limits must not be negative")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio %v out of range [0,1]", c.Tracing.SampleRatio)
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k.Key == "" || k.Extra == "" {
			return fmt.Errorf("api key '%s' needs both key and extra", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotbook"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "data/slotbook.db"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5000
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.GRPC.MaxRecvMsgBytes <= 0 {
		c.API.GRPC.MaxRecvMsgBytes = 1 << 20
	}
	if c.API.GRPC.MaxConnectionIdleSeconds <= 0 {
		c.API.GRPC.MaxConnectionIdleSeconds = 300
	}
	if c.API.GRPC.ShutdownGraceSeconds <= 0 {
		c.API.GRPC.ShutdownGraceSeconds = 10
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.RateLimitAttempts == 0 {
		c.Booking.RateLimitAttempts = 10
	}
	if c.Booking.RateLimitWindowSeconds == 0 {
		c.Booking.RateLimitWindowSeconds = 60
	}
	if c.Booking.SlotGuardTTLSeconds == 0 {
		c.Booking.SlotGuardTTLSeconds = 10
	}

	if c.Notifications.TimeoutSeconds == 0 {
		c.Notifications.TimeoutSeconds = 5
	}
	if c.Notifications.Kafka.Topic == "" {
		c.Notifications.Kafka.Topic = "slotbook.reservations"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Reservations"
	}

	if c.Worker.PollIntervalSeconds == 0 {
		c.Worker.PollIntervalSeconds = 2
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.App.Name
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}

	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
}
