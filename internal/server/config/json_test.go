package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"bcrypt_cost":                     11,
		"lockout_threshold":               4,
		"lockout_window":                  int64(10 * time.Minute),
		"lockout_backend":                 "redis",
		"redis_url":                       "redis://r:6379/3",
		"log_level":                       "warn",
	})

	t.Run("loads every field", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-config", full})

		assert.Empty(t, cmp.Diff(&Config{
			EndpointAddrHTTP:             "www.example:9000",
			DatabaseDSN:                  "postgres://db",
			SecretKey:                    "my_secret_key",
			AccessTokenValidityDuration:  time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
			BcryptCost:                   11,
			LockoutThreshold:             4,
			LockoutWindow:                10 * time.Minute,
			LockoutBackend:               "redis",
			RedisURL:                     "redis://r:6379/3",
			LogLevel:                     "warn",
		}, cfg))
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"secret_key": "only"})
		cfg := defaults()
		parseJson(cfg, []string{"-c", partial})

		want := defaults()
		want.SecretKey = "only"
		assert.Empty(t, cmp.Diff(want, cfg))
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-a", ":1"})
		assert.Empty(t, cmp.Diff(defaults(), cfg))
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		require.Panics(t, func() { parseJson(defaults(), []string{"-config", bad}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		require.Panics(t, func() { parseJson(defaults(), []string{"-c", filepath.Join(dir, "absent.json")}) })
	})
}
