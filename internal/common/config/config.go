// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig                 `mapstructure:"app"`
	Pipeline    PipelineConfig            `mapstructure:"pipeline"`
	Ledger      LedgerConfig              `mapstructure:"ledger"`
	Database    DatabaseConfig            `mapstructure:"database"`
	Originality OriginalityConfig         `mapstructure:"originality"`
	Trademark   TrademarkConfig           `mapstructure:"trademark"`
	Platforms   map[string]PlatformConfig `mapstructure:"platforms"`
	Monitor     MonitorConfig             `mapstructure:"monitor"`
	Logging     LoggingConfig             `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PipelineConfig holds the orchestrator settings.
type PipelineConfig struct {
	MaxInFlight   int `mapstructure:"max_in_flight"`  // concurrent candidates
	MaxAttempts   int `mapstructure:"max_attempts"`   // per (candidate, target)
	RetryDelay    int `mapstructure:"retry_delay"`    // milliseconds
	UploadTimeout int `mapstructure:"upload_timeout"` // milliseconds
}

// LedgerConfig holds the audit ledger settings.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OriginalityConfig holds settings for the reverse-image search gate.
type OriginalityConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

// TrademarkConfig holds settings for the keyword trademark screen.
type TrademarkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// PlatformConfig holds per-marketplace settings. Each key under
// `platforms:` must match a registered adapter name.
type PlatformConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	UploadURL       string  `mapstructure:"upload_url"`
	APIKey          string  `mapstructure:"api_key"`
	CollectionSlug  string  `mapstructure:"collection_slug"`
	PinURL          string  `mapstructure:"pin_url"` // IPFS pinning endpoint (NFT mint only)
	PinJWT          string  `mapstructure:"pin_jwt"`
	PriceMultiplier float64 `mapstructure:"price_multiplier"`
}

// MonitorConfig holds settings for the takedown scanner.
type MonitorConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ScanInterval int    `mapstructure:"scan_interval"` // milliseconds
	LegalEmail   string `mapstructure:"legal_email"`
	FromEmail    string `mapstructure:"from_email"`
	SNSTopicARN  string `mapstructure:"sns_topic_arn"`
	AWSRegion    string `mapstructure:"aws_region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
