package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRELLIS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000000.0, cfg.Experiment.Cash)
	assert.Equal(t, 5, cfg.Experiment.NumSymbols)
	assert.Equal(t, "SPY", cfg.Experiment.Benchmark)
	assert.Equal(t, 1000, cfg.Experiment.BootstrapRounds)
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Experiment.InSampleStart)
	assert.Nil(t, cfg.Experiment.Sectors)
	assert.Equal(t, 4, cfg.Provider.MaxConcurrent)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRELLIS_DATA_DIR", t.TempDir())
	t.Setenv("TRIAL_NUM_SYMBOLS", "10")
	t.Setenv("TRIAL_SECTORS", "Energy, Utilities ,Financials")
	t.Setenv("IN_SAMPLE_START", "2018-01-01")
	t.Setenv("IN_SAMPLE_END", "2020-01-01")
	t.Setenv("OUT_SAMPLE_START", "2020-01-01")
	t.Setenv("OUT_SAMPLE_END", "2020-07-01")
	t.Setenv("DIAGONALIZE_COVARIANCE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Experiment.NumSymbols)
	assert.Equal(t, []string{"Energy", "Utilities", "Financials"}, cfg.Experiment.Sectors)
	assert.Equal(t, time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC), cfg.Experiment.OutSampleEnd)
	assert.True(t, cfg.Experiment.Diagonalize)
}

func TestLoadRejectsBadDate(t *testing.T) {
	t.Setenv("TRELLIS_DATA_DIR", t.TempDir())
	t.Setenv("IN_SAMPLE_START", "01/02/2017")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IN_SAMPLE_START")
}

func TestValidate(t *testing.T) {
	t.Setenv("TRELLIS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Experiment.Cash = -5
	assert.Error(t, cfg.Validate())

	cfg.Experiment.Cash = 1000
	cfg.Experiment.InSampleEnd = cfg.Experiment.InSampleStart
	assert.Error(t, cfg.Validate())

	cfg.Experiment.InSampleEnd = cfg.Experiment.InSampleStart.AddDate(1, 0, 0)
	cfg.Archive.Enabled = true
	cfg.Archive.Bucket = ""
	assert.Error(t, cfg.Validate())
}
