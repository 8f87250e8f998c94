package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance that holds the intake rate-limit
// counters.
//
//	REDIS_URL                redis:// or rediss:// URL, wins over the rest
//	REDIS_HOST, REDIS_PORT   host and port
//	REDIS_ADDR               host:port shorthand (default localhost:6379)
//	REDIS_PASSWORD, REDIS_DB credentials and database number
//	REDIS_TLS                enable TLS
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func LoadRedisConfig() RedisConfig {
	return loadRedis(os.LookupEnv)
}

func loadRedis(lookup lookupFunc) RedisConfig {
	e := env{lookup: lookup}
	addr := e.str("REDIS_ADDR", "localhost:6379")
	if host, port := e.str("REDIS_HOST", ""), e.str("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	return RedisConfig{
		URL:      e.str("REDIS_URL", ""),
		Addr:     addr,
		Password: e.str("REDIS_PASSWORD", ""),
		DB:       e.integer("REDIS_DB", 0),
		TLS:      envBool(e.str("REDIS_TLS", ""), false),
	}
}

// Options converts the configuration for go-redis.
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		return redis.ParseURL(c.URL)
	}
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// NewRedisClient connects and pings.  The intake server treats an error as
// "run without rate limiting".
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
