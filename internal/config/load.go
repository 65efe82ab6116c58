package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables (prefixed
// BIZSCAN_) take precedence over values from the config file, which in turn
// override the built-in defaults. Returns a populated Config or an error when
// loading or validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFromFile behaves like Load but reads the given config file instead of
// searching the working directory. Used by tests to avoid chdir games.
func LoadFromFile(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the service can run on env vars and
		// defaults alone. Anything else (unreadable file, bad YAML) is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("BIZSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are unknown to viper until bound, so the secrets
	// and connection settings are bound explicitly.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "BIZSCAN_SERVER_PORT"},
		{"server.log_level", "BIZSCAN_SERVER_LOG_LEVEL"},
		{"database.url", "BIZSCAN_DATABASE_URL"},
		{"auth.jwt_secret", "BIZSCAN_AUTH_JWT_SECRET"},
		{"auth.admin_key_hash", "BIZSCAN_AUTH_ADMIN_KEY_HASH"},
		{"gamma.api_key", "BIZSCAN_GAMMA_API_KEY"},
		{"ofdata.api_key", "BIZSCAN_OFDATA_API_KEY"},
		{"llm.gemini_api_key", "BIZSCAN_LLM_GEMINI_API_KEY"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.lookup_ttl", "24h")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("gamma.base_url", "https://public-api.gamma.app/v0.2")
	v.SetDefault("gamma.poll_interval", "5s")
	v.SetDefault("gamma.poll_timeout", "10m")
	v.SetDefault("gamma.default_card_count", 10)

	v.SetDefault("ofdata.base_url", "https://api.ofdata.ru")
	v.SetDefault("ofdata.timeout", "15s")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "2s")

	v.SetDefault("queue.poll_interval", "1s")
	v.SetDefault("queue.cleanup_interval", "5m")
	v.SetDefault("queue.retention", "1h")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.gamma.workers", 2)
	v.SetDefault("queue.gamma.rate_per_minute", 10)
	v.SetDefault("queue.gamma.rate_per_hour", 0)
	v.SetDefault("queue.gamma.daily_quota", 50)
	v.SetDefault("queue.ofdata.workers", 3)
	v.SetDefault("queue.ofdata.rate_per_minute", 60)
	v.SetDefault("queue.ofdata.rate_per_hour", 1000)
	v.SetDefault("queue.ofdata.daily_quota", 0)
}
