// Package config loads the immutable per-run configuration: engine timing,
// risk parameters, enabled symbols, session windows, and I/O settings.
// Secrets (Telegram credentials) come from the environment, optionally via a
// .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/prathan03/mt5-auto-trade/risk"
)

// Config is the complete engine configuration.
type Config struct {
	Engine   EngineConfig            `yaml:"engine"`
	Risk     risk.Config             `yaml:"risk"`
	Symbols  map[string]SymbolConfig `yaml:"symbols"`
	Sessions SessionConfig           `yaml:"sessions"`
	Journal  JournalConfig           `yaml:"journal"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Log      LogConfig               `yaml:"log"`
}

// EngineConfig times the scan loop.
type EngineConfig struct {
	IntervalSeconds     int     `yaml:"interval_seconds"`
	Workers             int     `yaml:"workers"`
	TaskTimeoutSeconds  int     `yaml:"task_timeout_seconds"`
	BackoffSeconds      int     `yaml:"backoff_seconds"`
	Magic               int64   `yaml:"magic"`
	UseNewsFilter       bool    `yaml:"use_news_filter"`
	MaxSpreadMultiplier float64 `yaml:"max_spread_multiplier"`
	SlippagePoints      int     `yaml:"slippage_points"`
}

func (e EngineConfig) Interval() time.Duration {
	return time.Duration(e.IntervalSeconds) * time.Second
}

func (e EngineConfig) TaskTimeout() time.Duration {
	return time.Duration(e.TaskTimeoutSeconds) * time.Second
}

func (e EngineConfig) Backoff() time.Duration {
	return time.Duration(e.BackoffSeconds) * time.Second
}

// SymbolConfig enables a symbol for scanning and bounds its normal spread.
type SymbolConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxSpreadPoints int  `yaml:"max_spread_points"`
}

// SessionWindow is a trading session's local-hour range. Start > End means
// the window wraps midnight.
type SessionWindow struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// SessionConfig gates scanning by trading session.
type SessionConfig struct {
	Enabled bool                     `yaml:"enabled"`
	Windows map[string]SessionWindow `yaml:"windows"`
}

type JournalConfig struct {
	DBPath string `yaml:"db_path"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int64  `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Env holds secrets read from the process environment.
type Env struct {
	TelegramToken  string
	TelegramChatID string
}

// Default returns the conservative production configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			IntervalSeconds:     300,
			Workers:             5,
			TaskTimeoutSeconds:  30,
			BackoffSeconds:      60,
			Magic:               234000,
			UseNewsFilter:       true,
			MaxSpreadMultiplier: 2.0,
			SlippagePoints:      20,
		},
		Risk: risk.DefaultConfig(),
		Symbols: map[string]SymbolConfig{
			"EURUSD": {Enabled: true, MaxSpreadPoints: 20},
			"XAUUSD": {Enabled: true, MaxSpreadPoints: 50},
		},
		Sessions: SessionConfig{
			Enabled: true,
			Windows: map[string]SessionWindow{
				"ASIAN":    {Start: 7, End: 16},
				"EUROPEAN": {Start: 14, End: 23},
				"US":       {Start: 20, End: 5},
			},
		},
		Journal: JournalConfig{DBPath: "./mt5auto.sqlite"},
		Log:     LogConfig{File: "./mt5auto.log", MaxSizeMB: 10, MaxBackups: 3},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if c.Engine.IntervalSeconds <= 0 {
		return fmt.Errorf("engine.interval_seconds must be positive")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}
	if c.Engine.TaskTimeoutSeconds <= 0 {
		return fmt.Errorf("engine.task_timeout_seconds must be positive")
	}
	if c.Engine.BackoffSeconds <= 0 {
		return fmt.Errorf("engine.backoff_seconds must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	enabled := 0
	for symbol, sc := range c.Symbols {
		if sc.Enabled {
			enabled++
		}
		if sc.MaxSpreadPoints < 0 {
			return fmt.Errorf("symbols.%s.max_spread_points must not be negative", symbol)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no symbols enabled")
	}
	return nil
}

// EnabledSymbols lists symbols with scanning turned on.
func (c *Config) EnabledSymbols() []string {
	var out []string
	for symbol, sc := range c.Symbols {
		if sc.Enabled {
			out = append(out, symbol)
		}
	}
	return out
}

// LoadEnv reads secrets from the environment, loading a .env file first when
// one exists. Missing credentials are not an error; Telegram is optional.
func LoadEnv() Env {
	_ = godotenv.Load()
	return Env{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}
}
