package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbrain/internal/domain"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "adj_close", cfg.Backtest.PriceColumn)
	assert.Equal(t, "alpha", cfg.Backtest.SignalColumn)
	assert.Equal(t, 5.0, cfg.Backtest.FeeBps)
	assert.Equal(t, 1.5, cfg.Backtest.SlippageBps)
	assert.Equal(t, domain.HoldThreshold(0.4), cfg.Backtest.Hold)
	assert.Equal(t, 3, cfg.Backtest.MinHoldBars)
	assert.Equal(t, 10000.0, cfg.Backtest.Equity0)

	assert.Equal(t, "clickhouse://default:@localhost:9000/quant", cfg.Storage.ClickhouseDSN)
	assert.False(t, cfg.Storage.Memory())
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, DefaultMetricsAddr, cfg.Server.MetricsAddr, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultBacktestConfig(), cfg.Backtest)
	assert.True(t, cfg.Storage.Memory())
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDecode_HoldBarsAndUnknownKeys(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(strings.NewReader("hold: 4\n"), cfg))
	assert.Equal(t, domain.HoldBars(4), cfg.Backtest.Hold)
	assert.Equal(t, domain.DefaultFeeBps, cfg.Backtest.FeeBps)

	err := Decode(strings.NewReader("fee_bsp: 3\n"), Default())
	assert.Error(t, err)

	require.NoError(t, Decode(strings.NewReader(""), Default()))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://env")
	t.Setenv(EnvClickhouseDSN, "clickhouse://env:9000/db")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvServerAddr, ":9999")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://env:9000/db", cfg.Storage.ClickhouseDSN)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("QB_LOG_LEVEL=error\nQB_METRICS_ADDR=:7070\n"), 0o600))

	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)
	t.Setenv(EnvMetricsAddr, ":1111")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "error", os.Getenv(EnvLogLevel))
	assert.Equal(t, ":1111", os.Getenv(EnvMetricsAddr), "existing variables are not overridden")
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Backtest.Hold = domain.HoldThreshold(1)
	cfg.Backtest.MinHoldBars = 5
	cfg.Storage.UseMemory = true

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backtest, back.Backtest)
	assert.True(t, back.Storage.UseMemory)

	assert.Error(t, Save(path, nil))
}
