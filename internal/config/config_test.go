package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "leamatch.db", cfg.Store.SQLitePath)
	assert.Equal(t, 2, cfg.Match.MinOverlapTokens)
	assert.Equal(t, "https://educationdata.urban.org", cfg.Edudata.BaseURL)
	assert.InDelta(t, 5, cfg.Edudata.RatePerSec, 0.001)
	assert.Equal(t, 2022, cfg.Edudata.DirectoryYear)
	assert.Equal(t, 4, cfg.Edudata.MaxConcurrency)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "/tmp/leamatch", cfg.Boundaries.TempDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/test.db
match:
  min_overlap_tokens: 3
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Store.SQLitePath)
	assert.Equal(t, 3, cfg.Match.MinOverlapTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 2022, cfg.Edudata.DirectoryYear)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEAMATCH_STORE_DRIVER", "postgres")
	t.Setenv("LEAMATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEAMATCH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with the defaults validation expects.
func validDefaults() *Config {
	return &Config{
		Store:   StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/leamatch"},
		Match:   MatchConfig{MinOverlapTokens: 2},
		Edudata: EdudataConfig{BaseURL: "https://educationdata.urban.org", MaxConcurrency: 4},
		Server:  ServerConfig{Port: 8080},
	}
}

func TestValidateMatch_OK(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("match"))
}

func TestValidateMatch_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateMatch_SQLiteDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store = StoreConfig{Driver: "sqlite", SQLitePath: "x.db"}
	assert.NoError(t, cfg.Validate("match"))

	cfg.Store.SQLitePath = ""
	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path is required")
}

func TestValidateMatch_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateMatch_MinOverlapTokens(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.MinOverlapTokens = 0

	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_overlap_tokens must be >= 1")
}

func TestValidateLoad_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Edudata.MaxConcurrency = 0
	err := cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency must be between 1 and 16")

	cfg.Edudata.MaxConcurrency = 17
	err = cfg.Validate("load")
	assert.Error(t, err)

	cfg.Edudata.MaxConcurrency = 16
	assert.NoError(t, cfg.Validate("load"))
}

func TestValidateCRM_MissingCreds(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("crm")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.client_id is required")
	assert.Contains(t, err.Error(), "salesforce.username is required")
	assert.Contains(t, err.Error(), "salesforce.key_path is required")
}

func TestValidateBoundaries_RequiresPostgres(t *testing.T) {
	cfg := validDefaults()
	cfg.Store = StoreConfig{Driver: "sqlite", SQLitePath: "x.db"}

	err := cfg.Validate("boundaries")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver=postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
