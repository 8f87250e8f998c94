package config

import (
	"os"
	"strings"
	"time"
)

// RateLimitConfig controls how many purchases one client address may submit
// per window.
type RateLimitConfig struct {
	Enabled bool
	Limit   int           // submissions allowed per window
	Window  time.Duration // fixed window length
	Prefix  string        // Redis key prefix
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Invalid values fall back
// to defaults rather than stopping the server: rate limiting is optional.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit(os.LookupEnv)
}

func loadRateLimit(lookup lookupFunc) RateLimitConfig {
	e := env{lookup: lookup}
	cfg := RateLimitConfig{
		Enabled: envBool(e.str("RATE_LIMIT_ENABLED", ""), true),
		Limit:   e.integer("RATE_LIMIT_PURCHASES", 30),
		Window:  e.duration("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:  e.str("RATE_LIMIT_PREFIX", "tickethub"),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window < time.Second {
		cfg.Window = time.Second
	}
	return cfg
}

func envBool(v string, d bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}
