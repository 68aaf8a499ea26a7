package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Empty(t, c.DatabaseDSN)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, 12, c.BcryptCost)
	assert.Equal(t, 10, c.LockoutThreshold)
	assert.Equal(t, time.Hour, c.LockoutWindow)
	assert.Equal(t, LockoutBackendMemory, c.LockoutBackend)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoad_NoSourcesKeepsDefaults(t *testing.T) {
	c := load(nil, filepath.Join(t.TempDir(), "missing.env"))
	require.NotNil(t, c)
	assert.Empty(t, cmp.Diff(defaults(), c))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"endpoint_addr_http": ":7000",
		"secret_key":         "from-json",
		"lockout_threshold":  3,
	})
	dotenv := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DOCAUTH_SECRET_KEY=from-dotenv\nDOCAUTH_LOCKOUT_THRESHOLD=4\n"), 0o600))
	t.Setenv("DOCAUTH_LOCKOUT_THRESHOLD", "5")
	// godotenv writes into the process environment; register for cleanup.
	t.Setenv("DOCAUTH_SECRET_KEY", "")
	require.NoError(t, os.Unsetenv("DOCAUTH_SECRET_KEY"))

	c := load([]string{"-c", jsonPath, "-a", ":9000"}, dotenv)

	assert.Equal(t, ":9000", c.EndpointAddrHTTP, "flag beats json")
	assert.Equal(t, "from-dotenv", c.SecretKey, "dotenv beats json")
	assert.Equal(t, 5, c.LockoutThreshold, "real env beats dotenv")
}
