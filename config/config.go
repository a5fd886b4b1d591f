// Package config loads roundtable settings from a TOML file and ROUNDTABLE_*
// environment variables, and participant rosters from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/hupe1980/roundtable/analysis"
	"github.com/hupe1980/roundtable/engine"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/summary"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "ROUNDTABLE"
	appDir     = "roundtable"
	fileMode   = 0o600
	dirMode    = 0o700
)

// Config is the complete file configuration.
type Config struct {
	Model  ModelConfig  `mapstructure:"model" toml:"model"`
	Store  StoreConfig  `mapstructure:"store" toml:"store"`
	Log    LogConfig    `mapstructure:"log" toml:"log"`
	Engine EngineConfig `mapstructure:"engine" toml:"engine"`
}

// ModelConfig selects and tunes the generation backend.
type ModelConfig struct {
	// Provider is one of ollama, openai, anthropic or mock.
	Provider    string  `mapstructure:"provider" toml:"provider"`
	Name        string  `mapstructure:"name" toml:"name"`
	BaseURL     string  `mapstructure:"base_url" toml:"base_url,omitempty"`
	APIKey      string  `mapstructure:"api_key" toml:"api_key,omitempty"`
	Temperature float64 `mapstructure:"temperature" toml:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens" toml:"max_tokens"`
	Words       int     `mapstructure:"words" toml:"words"`
	Timeout     string  `mapstructure:"timeout" toml:"timeout"`
	Stream      bool    `mapstructure:"stream" toml:"stream"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	// Driver is sqlite, json or memory. Path names the database or document.
	Driver string `mapstructure:"driver" toml:"driver"`
	Path   string `mapstructure:"path" toml:"path"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// EngineConfig mirrors engine.Config with TOML friendly types.
type EngineConfig struct {
	AutoChain           bool   `mapstructure:"auto_chain" toml:"auto_chain"`
	MaxChainedTurns     int    `mapstructure:"max_chained_turns" toml:"max_chained_turns"`
	Debounce            string `mapstructure:"debounce" toml:"debounce"`
	MinInitialFull      int    `mapstructure:"min_initial_full" toml:"min_initial_full"`
	MinIncrementalDelta int    `mapstructure:"min_incremental_delta" toml:"min_incremental_delta"`
	KeepRecentTurns     int    `mapstructure:"keep_recent_turns" toml:"keep_recent_turns"`
	MaxRawHistory       int    `mapstructure:"max_raw_history" toml:"max_raw_history"`
	AnalysisInterval    int    `mapstructure:"analysis_interval" toml:"analysis_interval"`
	// AnalysisWindow limits analysis prompts to the most recent messages.
	// Zero sends the whole transcript.
	AnalysisWindow      int    `mapstructure:"analysis_window" toml:"analysis_window"`
}

// Default returns the built-in configuration: a local Ollama model and a
// SQLite store under the user's config directory.
func Default() Config {
	sc := summary.DefaultConfig()
	return Config{
		Model: ModelConfig{
			Provider:    "ollama",
			Name:        "llama3.1",
			Temperature: 0.7,
			MaxTokens:   512,
			Words:       120,
			Timeout:     "2m",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir(), "sessions.db"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Engine: EngineConfig{
			AutoChain:           engine.DefaultConfig.AutoChain,
			MaxChainedTurns:     engine.DefaultConfig.MaxChainedTurns,
			Debounce:            engine.DefaultConfig.Debounce.String(),
			MinInitialFull:      sc.MinInitialFull,
			MinIncrementalDelta: sc.MinIncrementalDelta,
			KeepRecentTurns:     sc.KeepRecentTurns,
			MaxRawHistory:       sc.MaxRawHistory,
			AnalysisInterval:    analysis.DefaultConfig().Interval,
		},
	}
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDir)
	}
	return "." + appDir
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(Dir(), configName+"."+configType)
}

// Load reads the configuration. An explicit path must exist; without one the
// default location is used when present. Environment variables such as
// ROUNDTABLE_MODEL_NAME override file values.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, Default())

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.api_key", d.Model.APIKey)
	v.SetDefault("model.temperature", d.Model.Temperature)
	v.SetDefault("model.max_tokens", d.Model.MaxTokens)
	v.SetDefault("model.words", d.Model.Words)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("model.stream", d.Model.Stream)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("engine.auto_chain", d.Engine.AutoChain)
	v.SetDefault("engine.max_chained_turns", d.Engine.MaxChainedTurns)
	v.SetDefault("engine.debounce", d.Engine.Debounce)
	v.SetDefault("engine.min_initial_full", d.Engine.MinInitialFull)
	v.SetDefault("engine.min_incremental_delta", d.Engine.MinIncrementalDelta)
	v.SetDefault("engine.keep_recent_turns", d.Engine.KeepRecentTurns)
	v.SetDefault("engine.max_raw_history", d.Engine.MaxRawHistory)
	v.SetDefault("engine.analysis_interval", d.Engine.AnalysisInterval)
	v.SetDefault("engine.analysis_window", d.Engine.AnalysisWindow)
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "ollama", "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Engine.AnalysisWindow < 0 {
		return errors.New("engine.analysis_window must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite", "json":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.ModelTimeout(); err != nil {
		return err
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// ModelTimeout parses model.timeout.
func (c *Config) ModelTimeout() (time.Duration, error) {
	if c.Model.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 0, fmt.Errorf("model.timeout: %w", err)
	}
	return d, nil
}

// EngineConfig converts the engine section into an engine.Config.
func (c *Config) EngineConfig() (engine.Config, error) {
	out := engine.DefaultConfig
	out.AutoChain = c.Engine.AutoChain
	out.MaxChainedTurns = c.Engine.MaxChainedTurns
	if c.Engine.Debounce != "" {
		d, err := time.ParseDuration(c.Engine.Debounce)
		if err != nil {
			return engine.Config{}, fmt.Errorf("engine.debounce: %w", err)
		}
		out.Debounce = d
	}
	out.Summary.Merge(&summary.Config{
		MinInitialFull:      c.Engine.MinInitialFull,
		MinIncrementalDelta: c.Engine.MinIncrementalDelta,
		KeepRecentTurns:     c.Engine.KeepRecentTurns,
		MaxRawHistory:       c.Engine.MaxRawHistory,
	})
	out.Analysis.Merge(&analysis.Config{Interval: c.Engine.AnalysisInterval})
	return out, nil
}

// Logger builds the structured logger described by the log section.
func (c *Config) Logger() *logging.StructuredLogger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LogLevelWarn
	}
	return logging.NewSlogLogger(level, c.Log.Format, false)
}

// WriteDefault writes the default configuration as TOML. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	}
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
