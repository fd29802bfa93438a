package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into a fresh temp dir so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.OCR.Provider)
	assert.Equal(t, 10, cfg.OCR.TimeoutSecs)
	assert.Equal(t, 0, cfg.OCR.Circuit.FailureThreshold)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.Model, "provider picks its own default model")
	assert.Equal(t, 50, cfg.LLM.MaxTokens)
	assert.Equal(t, 30, cfg.LLM.TimeoutSecs)
	assert.Equal(t, "standard", cfg.Arbitration.Variant)
	assert.InDelta(t, 0.95, cfg.Arbitration.EarlyAcceptThreshold, 0.0001)
	assert.Nil(t, cfg.Arbitration.MinConfidenceFloor)
	assert.Equal(t, DefaultKnownSerials, cfg.Knowledge.Serials)
	assert.Equal(t, "Europe/Vienna", cfg.Timeline.Zone)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "results/experiments.csv", cfg.Store.CSVPath)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
ocr:
  provider: tesseract
arbitration:
  variant: scanner
  early_accept_threshold: 0.9
  min_confidence_floor: 0.3
knowledge:
  serials: [S04878, D00494]
store:
  driver: csv
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.Equal(t, "scanner", cfg.Arbitration.Variant)
	assert.InDelta(t, 0.9, cfg.Arbitration.EarlyAcceptThreshold, 0.0001)
	require.NotNil(t, cfg.Arbitration.MinConfidenceFloor)
	assert.InDelta(t, 0.3, *cfg.Arbitration.MinConfidenceFloor, 0.0001)
	assert.Equal(t, []string{"S04878", "D00494"}, cfg.Knowledge.Serials)
	assert.Equal(t, "csv", cfg.Store.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.OCR.TimeoutSecs)
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

	t.Setenv("SERIALSCAN_STORE_DRIVER", "postgres")
	t.Setenv("SERIALSCAN_LOG_LEVEL", "warn")
	t.Setenv("SERIALSCAN_LLM_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestLoadDotEnvProviderKey(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=sk-ant-dotenv\n"), 0644))
	t.Setenv("SERIALSCAN_LLM_PROVIDER", "anthropic")
	orig, had := os.LookupEnv("ANTHROPIC_API_KEY")
	require.NoError(t, os.Unsetenv("ANTHROPIC_API_KEY"))
	t.Cleanup(func() {
		if had {
			os.Setenv("ANTHROPIC_API_KEY", orig) //nolint:errcheck
			return
		}
		os.Unsetenv("ANTHROPIC_API_KEY") //nolint:errcheck
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant-dotenv", cfg.LLM.APIKey)
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
	cfg := &Config{}
	cfg.OCR.Provider = "http"
	cfg.OCR.URL = "http://ocr.local/scan_serial"
	cfg.LLM.APIKey = "sk-test"
	cfg.Arbitration.EarlyAcceptThreshold = 0.95
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScan_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("scan"))
}

func TestValidateScan_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.OCR.URL = ""
	cfg.LLM.APIKey = ""

	err := cfg.Validate("scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr.url is required")
	assert.Contains(t, err.Error(), "llm.api_key is required")
}

func TestValidateScan_BadThresholds(t *testing.T) {
	cfg := validDefaults()
	cfg.Arbitration.EarlyAcceptThreshold = 1.5
	floor := -0.1
	cfg.Arbitration.MinConfidenceFloor = &floor

	err := cfg.Validate("scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "early_accept_threshold")
	assert.Contains(t, err.Error(), "min_confidence_floor")
}

func TestValidateScan_UnknownOCRProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.OCR.Provider = "paddle"

	err := cfg.Validate("scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr.provider")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "mongo"
	err = cfg.Validate("results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
