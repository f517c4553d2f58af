package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 2000, cfg.Engine.MaxRadiusM, 0.001)
	assert.Equal(t, 5, cfg.Engine.MinComparables)
	assert.InDelta(t, 7, cfg.Engine.TargetMarginPct, 0.001)
	assert.Equal(t, 365, cfg.Engine.RecencyDays)
	assert.Equal(t, 10, cfg.Engine.MaxResults)
	assert.Equal(t, "integral", cfg.Engine.ReformCategory)
	assert.Equal(t, "medium", cfg.Engine.ReformQuality)
	assert.InDelta(t, 20000, cfg.Engine.MinProfit, 0.001)
	assert.InDelta(t, 15, cfg.Engine.MinROIPct, 0.001)
	assert.Equal(t, 50, cfg.Engine.MinConfidence)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "flip.db", cfg.Store.DatabaseURL)
	assert.Empty(t, cfg.Costs.TablePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
engine:
  max_radius_m: 1200
  reform_quality: high
store:
  driver: postgres
  database_url: postgres://localhost/flip
  max_conns: 25
log:
  level: debug
  format: console
batch:
  max_concurrent: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 1200, cfg.Engine.MaxRadiusM, 0.001)
	assert.Equal(t, "high", cfg.Engine.ReformQuality)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/flip", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(25), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrent)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Engine.MinComparables)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FLIP_STORE_DRIVER", "postgres")
	t.Setenv("FLIP_LOG_LEVEL", "warn")
	t.Setenv("FLIP_ENGINE_MIN_COMPARABLES", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Engine.MinComparables)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("engine: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxRadiusM:      2000,
			MinComparables:  5,
			TargetMarginPct: 7,
			RecencyDays:     365,
			MaxResults:      10,
			MinConfidence:   50,
		},
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "flip.db"},
		Batch:  BatchConfig{MaxConcurrent: 4},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidate_EngineRanges(t *testing.T) {
	cfg := validDefaults()
	cfg.Engine.MaxRadiusM = 0
	cfg.Engine.TargetMarginPct = 120
	cfg.Engine.MinConfidence = 101

	err := cfg.Validate("estimate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.max_radius_m must be > 0")
	assert.Contains(t, err.Error(), "engine.target_margin_pct must be between 0 and 100")
	assert.Contains(t, err.Error(), "engine.min_confidence must be between 0 and 100")
}

func TestValidate_EstimateIgnoresStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store = StoreConfig{}
	assert.NoError(t, cfg.Validate("estimate"))
	assert.NoError(t, cfg.Validate("reform"))
}

func TestValidate_StoreModes(t *testing.T) {
	for _, mode := range []string{"analyze", "import", "migrate"} {
		cfg := validDefaults()
		cfg.Store = StoreConfig{Driver: "mysql"}
		err := cfg.Validate(mode)
		require.Error(t, err, mode)
		assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
		assert.Contains(t, err.Error(), "store.database_url is required")
	}
}

func TestValidate_NegativePoolSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MaxConns = -1
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.max_conns and store.min_conns must be >= 0")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateBatchConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 50")

	cfg.Batch.MaxConcurrent = 51
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.MaxConcurrent = 50
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
