package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docauth/internal/flagx"
	"github.com/dmitrijs2005/docauth/internal/timex"
)

// JsonConfig is the on-disk shape. Durations accept "15m" style strings or
// integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	LockoutThreshold             int            `json:"lockout_threshold"`
	LockoutWindow                timex.Duration `json:"lockout_window"`
	LockoutBackend               string         `json:"lockout_backend"`
	RedisURL                     string         `json:"redis_url"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys missing
// from the file leave the current value alone. An unreadable or invalid file
// panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.JsonConfigFlags(args)
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LockoutBackend, c.LockoutBackend)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.LogLevel, c.LogLevel)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LockoutWindow.Duration > 0 {
		config.LockoutWindow = c.LockoutWindow.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.LockoutThreshold > 0 {
		config.LockoutThreshold = c.LockoutThreshold
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
