package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scan       ScanConfig       `yaml:"scan"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ScanConfig holds the presence toggle and circulation rules.
type ScanConfig struct {
	CooldownSeconds  int           `yaml:"cooldown_seconds"`
	Cooldown         time.Duration `yaml:"-"` // Ignored by YAML parser
	BorrowPeriodDays int           `yaml:"borrow_period_days"`
	AutoCheckoutHour int           `yaml:"auto_checkout_hour"`
	FinePerDay       float64       `yaml:"fine_per_day"`
	LateHour         int           `yaml:"late_hour"`
}

// ScannerConfig holds the connection details for the NFC scanner bridge.
type ScannerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AuthConfig holds the bearer-token settings for management endpoints.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Scan.CooldownSeconds <= 0 {
		cfg.Scan.CooldownSeconds = 30
	}
	cfg.Scan.Cooldown = time.Duration(cfg.Scan.CooldownSeconds) * time.Second

	if cfg.Scan.BorrowPeriodDays <= 0 {
		cfg.Scan.BorrowPeriodDays = 14
	}
	if cfg.Scan.AutoCheckoutHour <= 0 {
		cfg.Scan.AutoCheckoutHour = 18
	}
	if cfg.Scan.FinePerDay <= 0 {
		cfg.Scan.FinePerDay = 5.0
	}
	if cfg.Scan.LateHour <= 0 {
		cfg.Scan.LateHour = 9
	}

	// The bridge waits up to 30s for a card; allow a small buffer on top.
	if cfg.Scanner.TimeoutSeconds <= 0 {
		cfg.Scanner.TimeoutSeconds = 35
	}
	cfg.Scanner.Timeout = time.Duration(cfg.Scanner.TimeoutSeconds) * time.Second

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
