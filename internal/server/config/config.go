// Package config handles configuration for the auth server: defaults, then a
// JSON file, then environment variables, then command-line flags.
package config

import (
	"os"
	"time"
)

const (
	LockoutBackendMemory = "memory"
	LockoutBackendRedis  = "redis"
)

// Config holds runtime settings for the auth server.
//
// An empty DatabaseDSN selects the in-memory identity store.
type Config struct {
	EndpointAddrHTTP             string        `env:"DOCAUTH_HTTP_ADDR"`
	DatabaseDSN                  string        `env:"DOCAUTH_DATABASE_DSN"`
	SecretKey                    string        `env:"DOCAUTH_SECRET_KEY"`
	AccessTokenValidityDuration  time.Duration `env:"DOCAUTH_ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration time.Duration `env:"DOCAUTH_REFRESH_TOKEN_TTL"`
	BcryptCost                   int           `env:"DOCAUTH_BCRYPT_COST"`
	LockoutThreshold             int           `env:"DOCAUTH_LOCKOUT_THRESHOLD"`
	LockoutWindow                time.Duration `env:"DOCAUTH_LOCKOUT_WINDOW"`
	LockoutBackend               string        `env:"DOCAUTH_LOCKOUT_BACKEND"`
	RedisURL                     string        `env:"DOCAUTH_REDIS_URL"`
	LogLevel                     string        `env:"DOCAUTH_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.BcryptCost = 12
	c.LockoutThreshold = 10
	c.LockoutWindow = time.Hour
	c.LockoutBackend = LockoutBackendMemory
	c.RedisURL = "redis://localhost:6379/0"
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults and the process's JSON file,
// environment and flags, in that order. Malformed input panics.
func LoadConfig() *Config {
	return load(os.Args[1:], ".env")
}

func load(args []string, dotenv string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg, dotenv)
	parseFlags(cfg, args)
	return cfg
}
