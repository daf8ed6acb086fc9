package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config captures everything the corehost needs at boot so main stays lean.
type Config struct {
	Addr string

	// StorageBackend picks the durable KV implementation: memory, badger, redis.
	StorageBackend string
	StoragePath    string
	RedisURL       string

	// AuthHydrationTimeout bounds the auth hydration race at startup.
	AuthHydrationTimeout time.Duration

	// TimezonePollInterval is how often the orchestrator re-checks the device
	// timezone. Zero disables polling.
	TimezonePollInterval time.Duration

	// LegalPolicyPath points at the YAML table of required legal document
	// versions. Empty falls back to the compiled-in defaults.
	LegalPolicyPath string

	// ConsentPolicyVersion tags consent audit records; bumping it re-prompts.
	ConsentPolicyVersion string

	MinimumAge    int
	Region        string
	Locale        string
	JWTSigningKey string
}

// FromEnv builds the config from CULTIVAR_* environment variables with
// development-friendly defaults.
func FromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("cultivar")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", "127.0.0.1:7410")
	v.SetDefault("storage_backend", BackendBadger)
	v.SetDefault("storage_path", "./data")
	v.SetDefault("redis_url", "")
	v.SetDefault("auth_hydration_timeout", "5s")
	v.SetDefault("timezone_poll_interval", "60s")
	v.SetDefault("legal_policy_path", "")
	v.SetDefault("consent_policy_version", "2025.2")
	v.SetDefault("minimum_age", 21)
	v.SetDefault("region", "US-CA")
	v.SetDefault("locale", "en-US")
	// Development default; override in any real deployment.
	v.SetDefault("jwt_signing_key", "dev-secret-key-change-in-production")

	return Config{
		Addr:                 v.GetString("addr"),
		StorageBackend:       v.GetString("storage_backend"),
		StoragePath:          v.GetString("storage_path"),
		RedisURL:             v.GetString("redis_url"),
		AuthHydrationTimeout: v.GetDuration("auth_hydration_timeout"),
		TimezonePollInterval: v.GetDuration("timezone_poll_interval"),
		LegalPolicyPath:      v.GetString("legal_policy_path"),
		ConsentPolicyVersion: v.GetString("consent_policy_version"),
		MinimumAge:           v.GetInt("minimum_age"),
		Region:               v.GetString("region"),
		Locale:               v.GetString("locale"),
		JWTSigningKey:        v.GetString("jwt_signing_key"),
	}
}
