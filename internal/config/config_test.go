package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 200, cfg.Poller.IntervalMs)
	assert.Equal(t, 0.001, cfg.Poller.ValueDeadBand)
	assert.Equal(t, int64(500), cfg.Learner.MinHoverMs)
	assert.Equal(t, 0.70, cfg.Learner.ConfidenceThreshold)
	assert.Equal(t, 0.82, cfg.Matcher.FuzzyThreshold)
	assert.True(t, cfg.Vocabulary.SeedOnCreate)
	assert.Equal(t, 9720, cfg.Observer.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromPathCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	// The default file was written.
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Poller.IntervalMs)
	assert.Equal(t, 0.70, cfg.Learner.ConfidenceThreshold)
	assert.NotEmpty(t, cfg.Learner.DataFile, "empty paths are filled with defaults")
	assert.NotEmpty(t, cfg.Vocabulary.DBPath)
	assert.NotEmpty(t, cfg.Poller.StateFile)
}

func TestLoadFromPathReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
poller:
  interval_ms: 350
  value_dead_band: 0.005
learner:
  min_hover_ms: 750
matcher:
  fuzzy_threshold: 0.9
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 350, cfg.Poller.IntervalMs)
	assert.Equal(t, 0.005, cfg.Poller.ValueDeadBand)
	assert.Equal(t, int64(750), cfg.Learner.MinHoverMs)
	assert.Equal(t, 0.9, cfg.Matcher.FuzzyThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unspecified fields still get defaults.
	assert.Equal(t, 0.70, cfg.Learner.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Matcher.MinTagMatches)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Poller.IntervalMs = 500
	cfg.Logging.Level = "warn"
	require.NoError(t, cfg.SaveToPath(path))

	reloaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 500, reloaded.Poller.IntervalMs)
	assert.Equal(t, "warn", reloaded.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Learner.ConfidenceThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Matcher.FuzzyThreshold = -0.1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Matcher.MinTagMatches = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	// Out-of-range poll rates are not a validation error: they clamp at use.
	cfg = Default()
	cfg.Poller.IntervalMs = 5
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".reavoice"), expandPath("~/.reavoice"))
	assert.Equal(t, "/tmp/x", expandPath("/tmp/x"))
	assert.Equal(t, "", expandPath(""))
}
