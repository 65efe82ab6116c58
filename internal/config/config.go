package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Gamma    GammaConfig    `mapstructure:"gamma"    validate:"required"`
	OFData   OFDataConfig   `mapstructure:"ofdata"   validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// CacheConfig contains settings for the Redis cache used by registry lookups.
// When Enabled is false the service runs without a cache and every lookup
// goes straight to the provider.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Enabled true"`
	LookupTTL time.Duration `mapstructure:"lookup_ttl" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
// AdminKeyHash is a bcrypt hash of the admin API key; when empty the admin
// endpoints are not mounted.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	AdminKeyHash         string `mapstructure:"admin_key_hash"`
}

// GammaConfig contains settings for the Gamma generation API client.
type GammaConfig struct {
	BaseURL          string        `mapstructure:"base_url"           validate:"required,url"`
	APIKey           string        `mapstructure:"api_key"            validate:"required"`
	PollInterval     time.Duration `mapstructure:"poll_interval"      validate:"required,gt=0"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"       validate:"required,gt=0"`
	DefaultCardCount int           `mapstructure:"default_card_count" validate:"required,gt=0"`
}

// OFDataConfig contains settings for the OFData registry API client.
type OFDataConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"  validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings. The Gemini API key
// is optional; without it report enrichment is disabled.
type LLMConfig struct {
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	ModelName    string        `mapstructure:"model_name"  validate:"required"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// QueueConfig contains the task queue settings: the shared loop cadences and
// the per-provider worker, rate and quota settings. Each provider block
// applies to both of its task categories.
type QueueConfig struct {
	PollInterval    time.Duration       `mapstructure:"poll_interval"    validate:"required,gt=0"`
	CleanupInterval time.Duration       `mapstructure:"cleanup_interval" validate:"required,gt=0"`
	Retention       time.Duration       `mapstructure:"retention"        validate:"required,gt=0"`
	MaxRetries      int                 `mapstructure:"max_retries"      validate:"gte=0"`
	Gamma           QueueProviderConfig `mapstructure:"gamma"            validate:"required"`
	OFData          QueueProviderConfig `mapstructure:"ofdata"           validate:"required"`
}

// QueueProviderConfig holds the per-provider queue settings. A rate of zero
// or below means that window is unlimited; RatePerHour zero derives
// RatePerMinute*60. DailyQuota zero or below means no daily ceiling.
type QueueProviderConfig struct {
	Workers       int `mapstructure:"workers"         validate:"required,gte=1"`
	RatePerMinute int `mapstructure:"rate_per_minute"`
	RatePerHour   int `mapstructure:"rate_per_hour"`
	DailyQuota    int `mapstructure:"daily_quota"`
}
