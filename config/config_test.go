package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
auth:
  access_secret: access-secret
  refresh_secret: refresh-secret
cache:
  quote_ttl: 30s
`

// go test -v --run TestLoadFromFile
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.QuoteTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 300*time.Second, cfg.Cache.HistoricalTTL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 5, cfg.Auth.RateLimitMax)
}

// go test -v --run TestLoadEnvOverride
func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))

	t.Setenv("AUTH_RATE_LIMIT_MAX", "9")
	t.Setenv("PROVIDER_ALPHAVANTAGE_API_KEY", "demo")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Auth.RateLimitMax)
	assert.Equal(t, "demo", cfg.Provider.AlphaVantage.APIKey)
}

// go test -v --run TestValidateSecrets
func TestValidateSecrets(t *testing.T) {
	dir := t.TempDir()
	same := "auth:\n  access_secret: same\n  refresh_secret: same\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(same), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

// go test -v --run TestValidateBcryptCost
func TestValidateBcryptCost(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))
	t.Setenv("AUTH_BCRYPT_COST", "4")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bcrypt_cost")
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "yourpw",
		DBName:   "market_gateway",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=yourpw dbname=market_gateway sslmode=disable TimeZone=UTC",
		cfg.DSN("dev"))
	assert.Contains(t, cfg.MaintenanceDSN("dev"), "dbname=postgres")
}
