// Package config handles application configuration for ReaVoice.
// Configuration is loaded from ~/.reavoice/config.yaml and can be
// overridden by REAVOICE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the ReaVoice context
// pipeline.
type Config struct {
	Poller     PollerConfig     `mapstructure:"poller" yaml:"poller"`
	Learner    LearnerConfig    `mapstructure:"learner" yaml:"learner"`
	Matcher    MatcherConfig    `mapstructure:"matcher" yaml:"matcher"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary" yaml:"vocabulary"`
	Observer   ObserverConfig   `mapstructure:"observer" yaml:"observer"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// PollerConfig controls the external-state poll loop.
type PollerConfig struct {
	// StateFile is the path to the ExtState file the ReaScript bridge
	// exports. Empty means the REAPER resource-path default.
	StateFile string `mapstructure:"state_file" yaml:"state_file"`

	// IntervalMs is the poll cadence. Values outside [100, 1000] are
	// clamped at use, never rejected.
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`

	// ValueDeadBand suppresses jitter: same-control value moves at or
	// below this delta do not produce events.
	ValueDeadBand float64 `mapstructure:"value_dead_band" yaml:"value_dead_band"`
}

// LearnerConfig controls the control-identification learner.
type LearnerConfig struct {
	// DataFile is the training-data persistence path. Empty means
	// <data dir>/training.json.
	DataFile string `mapstructure:"data_file" yaml:"data_file"`

	// MinHoverMs is the minimum intentional-dwell time. Hover/click pairs
	// below it are treated as accidental mouse transits and not trained on.
	MinHoverMs int64 `mapstructure:"min_hover_ms" yaml:"min_hover_ms"`

	// ConfidenceThreshold is the minimum pattern confidence at which the
	// learned type overrides the upstream guess.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`

	// SaveEveryN bounds persistence I/O: state is written after every Nth
	// recorded interaction.
	SaveEveryN int `mapstructure:"save_every_n" yaml:"save_every_n"`

	// MaxInteractions caps the persisted interaction log (oldest dropped).
	MaxInteractions int `mapstructure:"max_interactions" yaml:"max_interactions"`
}

// MatcherConfig holds the vocabulary-matching thresholds. These started as
// empirically tuned constants; they are configuration here so retuning does
// not require a rebuild.
type MatcherConfig struct {
	// FuzzyThreshold is the minimum normalized-distance score for a fuzzy match.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold"`

	// PartialThreshold is the minimum token-coverage score for a partial match.
	PartialThreshold float64 `mapstructure:"partial_threshold" yaml:"partial_threshold"`

	// TokenFuzzyThreshold is the per-token fuzzy score that earns partial credit.
	TokenFuzzyThreshold float64 `mapstructure:"token_fuzzy_threshold" yaml:"token_fuzzy_threshold"`

	// TagThreshold is the minimum tag-coverage score for a tag match.
	TagThreshold float64 `mapstructure:"tag_threshold" yaml:"tag_threshold"`

	// MinTagMatches is the minimum number of matched tags for a tag match.
	MinTagMatches int `mapstructure:"min_tag_matches" yaml:"min_tag_matches"`
}

// VocabularyConfig controls the vocabulary store.
type VocabularyConfig struct {
	// DBPath is the SQLite vocabulary database path. Empty means
	// <data dir>/vocabulary.db.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// SeedOnCreate loads the built-in starter vocabulary into a freshly
	// created database.
	SeedOnCreate bool `mapstructure:"seed_on_create" yaml:"seed_on_create"`
}

// ObserverConfig controls the WebSocket event feed for the UI shell.
type ObserverConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	Port          int  `mapstructure:"port" yaml:"port"`
	ReplayHistory bool `mapstructure:"replay_history" yaml:"replay_history"`
	HistoryCount  int  `mapstructure:"history_count" yaml:"history_count"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional log file path ("" = stderr only)
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Poller: PollerConfig{
			IntervalMs:    200,
			ValueDeadBand: 0.001,
		},
		Learner: LearnerConfig{
			MinHoverMs:          500,
			ConfidenceThreshold: 0.70,
			SaveEveryN:          10,
			MaxInteractions:     1000,
		},
		Matcher: MatcherConfig{
			FuzzyThreshold:      0.82,
			PartialThreshold:    0.75,
			TokenFuzzyThreshold: 0.85,
			TagThreshold:        0.6,
			MinTagMatches:       2,
		},
		Vocabulary: VocabularyConfig{
			SeedOnCreate: true,
		},
		Observer: ObserverConfig{
			Enabled:       true,
			Port:          9720,
			ReplayHistory: true,
			HistoryCount:  100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the default path (~/.reavoice/config.yaml).
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".reavoice", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path, creating a
// default config file if none exists.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable overrides, e.g. REAVOICE_POLLER_INTERVAL_MS
	v.SetEnvPrefix("REAVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Poller.StateFile = expandPath(cfg.Poller.StateFile)
	cfg.Learner.DataFile = expandPath(cfg.Learner.DataFile)
	cfg.Vocabulary.DBPath = expandPath(cfg.Vocabulary.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in path and threshold fields a hand-edited config
// may have left empty.
func (c *Config) applyDefaults() {
	dataDir := c.GetDataDir()
	if c.Poller.StateFile == "" {
		c.Poller.StateFile = filepath.Join(dataDir, "extstate.ini")
	}
	if c.Poller.IntervalMs == 0 {
		c.Poller.IntervalMs = 200
	}
	if c.Poller.ValueDeadBand == 0 {
		c.Poller.ValueDeadBand = 0.001
	}
	if c.Learner.DataFile == "" {
		c.Learner.DataFile = filepath.Join(dataDir, "training.json")
	}
	if c.Learner.MinHoverMs == 0 {
		c.Learner.MinHoverMs = 500
	}
	if c.Learner.ConfidenceThreshold == 0 {
		c.Learner.ConfidenceThreshold = 0.70
	}
	if c.Learner.SaveEveryN == 0 {
		c.Learner.SaveEveryN = 10
	}
	if c.Learner.MaxInteractions == 0 {
		c.Learner.MaxInteractions = 1000
	}
	if c.Matcher.FuzzyThreshold == 0 {
		c.Matcher.FuzzyThreshold = 0.82
	}
	if c.Matcher.PartialThreshold == 0 {
		c.Matcher.PartialThreshold = 0.75
	}
	if c.Matcher.TokenFuzzyThreshold == 0 {
		c.Matcher.TokenFuzzyThreshold = 0.85
	}
	if c.Matcher.TagThreshold == 0 {
		c.Matcher.TagThreshold = 0.6
	}
	if c.Matcher.MinTagMatches == 0 {
		c.Matcher.MinTagMatches = 2
	}
	if c.Vocabulary.DBPath == "" {
		c.Vocabulary.DBPath = filepath.Join(dataDir, "vocabulary.db")
	}
	if c.Observer.Port == 0 {
		c.Observer.Port = 9720
	}
	if c.Observer.HistoryCount == 0 {
		c.Observer.HistoryCount = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Save writes the current configuration to the default path.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".reavoice", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the ReaVoice data directory path (~/.reavoice).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".reavoice")
}

// EnsureDirectories creates all directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.GetDataDir(),
		filepath.Dir(c.Learner.DataFile),
		filepath.Dir(c.Vocabulary.DBPath),
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors. Poll rates are
// deliberately not validated here: out-of-range values clamp at use.
func (c *Config) Validate() error {
	if c.Learner.ConfidenceThreshold < 0 || c.Learner.ConfidenceThreshold > 1 {
		return fmt.Errorf("learner.confidence_threshold must be in [0, 1], got %v", c.Learner.ConfidenceThreshold)
	}

	for name, v := range map[string]float64{
		"matcher.fuzzy_threshold":       c.Matcher.FuzzyThreshold,
		"matcher.partial_threshold":     c.Matcher.PartialThreshold,
		"matcher.token_fuzzy_threshold": c.Matcher.TokenFuzzyThreshold,
		"matcher.tag_threshold":         c.Matcher.TagThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}

	if c.Matcher.MinTagMatches < 1 {
		return fmt.Errorf("matcher.min_tag_matches must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
