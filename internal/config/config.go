// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Commands and tests depend on this rather than the concrete struct.
type Interface interface {
	Logger() LoggerConfig
	Display() DisplayConfig
	Humanoid() HumanoidConfig
	Oracle() OracleConfig
	Orchestrator() OrchestratorConfig
	Calibration() CalibrationConfig
	Narration() NarrationConfig
	Metrics() MetricsConfig

	// Orchestrator Setters (CLI flag overrides)
	SetOrchestratorChangeThreshold(float64)
	SetOrchestratorSettleDelay(time.Duration)
	SetOrchestratorRegionSize(int)
	SetOrchestratorStrategies([]string)

	// Display Setters
	SetDisplayBackend(string)
	SetDisplayImagePath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	DisplayCfg      DisplayConfig      `mapstructure:"display" yaml:"display"`
	HumanoidCfg     HumanoidConfig     `mapstructure:"humanoid" yaml:"humanoid"`
	OracleCfg       OracleConfig       `mapstructure:"oracle" yaml:"oracle"`
	OrchestratorCfg OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	CalibrationCfg  CalibrationConfig  `mapstructure:"calibration" yaml:"calibration"`
	NarrationCfg    NarrationConfig    `mapstructure:"narration" yaml:"narration"`
	MetricsCfg      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Display() DisplayConfig           { return c.DisplayCfg }
func (c *Config) Humanoid() HumanoidConfig         { return c.HumanoidCfg }
func (c *Config) Oracle() OracleConfig             { return c.OracleCfg }
func (c *Config) Orchestrator() OrchestratorConfig { return c.OrchestratorCfg }
func (c *Config) Calibration() CalibrationConfig   { return c.CalibrationCfg }
func (c *Config) Narration() NarrationConfig       { return c.NarrationCfg }
func (c *Config) Metrics() MetricsConfig           { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetOrchestratorChangeThreshold(f float64) {
	c.OrchestratorCfg.ChangeThreshold = f
}
func (c *Config) SetOrchestratorSettleDelay(d time.Duration) { c.OrchestratorCfg.SettleDelay = d }
func (c *Config) SetOrchestratorRegionSize(px int)          { c.OrchestratorCfg.RegionSize = px }
func (c *Config) SetOrchestratorStrategies(s []string)      { c.OrchestratorCfg.Strategies = s }

func (c *Config) SetDisplayBackend(b string)   { c.DisplayCfg.Backend = b }
func (c *Config) SetDisplayImagePath(p string) { c.DisplayCfg.ImagePath = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// Display backends.
const (
	DisplayBrowser = "browser"
	DisplayImage   = "image"
)

// DisplayConfig selects and tunes the screen the pointer acts on.
type DisplayConfig struct {
	Backend   string   `mapstructure:"backend" yaml:"backend"`
	URL       string   `mapstructure:"url" yaml:"url"`
	ImagePath string   `mapstructure:"image_path" yaml:"image_path"`
	Width     int      `mapstructure:"width" yaml:"width"`
	Height    int      `mapstructure:"height" yaml:"height"`
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	Args      []string `mapstructure:"args" yaml:"args"`
}

// OracleProvider defines the supported vision oracle providers.
type OracleProvider string

const (
	ProviderGemini OracleProvider = "gemini"
	ProviderOpenAI OracleProvider = "openai"
)

// OracleConfig configures the vision model used to locate elements.
type OracleConfig struct {
	Provider         OracleProvider `mapstructure:"provider" yaml:"provider"`
	Model            string         `mapstructure:"model" yaml:"model"`
	APIKey           string         `mapstructure:"api_key" yaml:"-"`
	Endpoint         string         `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout          time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Temperature      float32        `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	RateLimit        float64        `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst            int            `mapstructure:"burst" yaml:"burst"`
	NotFoundSentinel string         `mapstructure:"not_found_sentinel" yaml:"not_found_sentinel"`
}

// Strategy names accepted in orchestrator.strategies.
const (
	StrategyFullScreen       = "full_screen"
	StrategyCursorRegion     = "cursor_region"
	StrategyLastKnownRegion  = "last_known_region"
	maxOrchestratorStrategies = 3
)

// OrchestratorConfig tunes the locate/act/verify loop.
type OrchestratorConfig struct {
	ChangeThreshold float64       `mapstructure:"change_threshold" yaml:"change_threshold"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	RegionSize      int           `mapstructure:"region_size" yaml:"region_size"`
	Strategies      []string      `mapstructure:"strategies" yaml:"strategies"`
	RunTimeout      time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// Calibration backends.
const (
	CalibrationFile     = "file"
	CalibrationPostgres = "postgres"
)

// CalibrationConfig selects where the pointer offset correction is persisted.
type CalibrationConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// NarrationConfig configures spoken or logged progress announcements.
type NarrationConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Command   string   `mapstructure:"command" yaml:"command"`
	Args      []string `mapstructure:"args" yaml:"args"`
	QueueSize int      `mapstructure:"queue_size" yaml:"queue_size"`
}

// MetricsConfig configures the optional prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sightclick")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Display --
	v.SetDefault("display.backend", DisplayBrowser)
	v.SetDefault("display.url", "about:blank")
	v.SetDefault("display.width", 1920)
	v.SetDefault("display.height", 1080)
	v.SetDefault("display.headless", false)
	v.SetDefault("display.image_path", "")

	// -- Humanoid --
	setHumanoidDefaults(v)

	// -- Oracle --
	v.SetDefault("oracle.provider", string(ProviderOpenAI))
	v.SetDefault("oracle.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.endpoint", "")
	v.SetDefault("oracle.timeout", "45s")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 256)
	v.SetDefault("oracle.rate_limit", 0.5)
	v.SetDefault("oracle.burst", 1)
	v.SetDefault("oracle.not_found_sentinel", "NOT FOUND")

	// -- Orchestrator --
	v.SetDefault("orchestrator.change_threshold", 1.0)
	v.SetDefault("orchestrator.settle_delay", "2s")
	v.SetDefault("orchestrator.region_size", 400)
	v.SetDefault("orchestrator.strategies", []string{StrategyFullScreen, StrategyCursorRegion})
	v.SetDefault("orchestrator.run_timeout", "3m")

	// -- Calibration --
	v.SetDefault("calibration.backend", CalibrationFile)
	v.SetDefault("calibration.path", "~/.config/sightclick/calibration.json")

	// -- Narration --
	v.SetDefault("narration.enabled", false)
	v.SetDefault("narration.command", "")
	v.SetDefault("narration.queue_size", 8)

	// -- Metrics --
	v.SetDefault("metrics.addr", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for secrets.
	_ = v.BindEnv("calibration.database_url", "SIGHTCLICK_CALIBRATION_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.OracleCfg.APIKey == "" {
		cfg.OracleCfg.APIKey = apiKeyFromEnv(cfg.OracleCfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// apiKeyFromEnv falls back to the provider's conventional environment variables.
func apiKeyFromEnv(provider OracleProvider) string {
	names := []string{"GROQ_API_KEY", "OPENAI_API_KEY"}
	if provider == ProviderGemini {
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range names {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.DisplayCfg.Validate(); err != nil {
		return fmt.Errorf("display configuration invalid: %w", err)
	}
	if err := c.OracleCfg.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	if err := c.OrchestratorCfg.Validate(); err != nil {
		return fmt.Errorf("orchestrator configuration invalid: %w", err)
	}
	if err := c.CalibrationCfg.Validate(); err != nil {
		return fmt.Errorf("calibration configuration invalid: %w", err)
	}
	if c.HumanoidCfg.ClickHoldMaxMs < c.HumanoidCfg.ClickHoldMinMs {
		return fmt.Errorf("humanoid.click_hold_max_ms must be >= humanoid.click_hold_min_ms")
	}
	return nil
}

// Validate checks the display configuration.
func (d *DisplayConfig) Validate() error {
	switch d.Backend {
	case DisplayBrowser:
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("width and height must be positive integers")
		}
	case DisplayImage:
		if d.ImagePath == "" {
			return fmt.Errorf("image_path is required for the %q backend", DisplayImage)
		}
	default:
		return fmt.Errorf("unknown backend %q (supported: %s, %s)", d.Backend, DisplayBrowser, DisplayImage)
	}
	return nil
}

// Validate checks the oracle configuration.
func (o *OracleConfig) Validate() error {
	switch o.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q (supported: %s, %s)", o.Provider, ProviderGemini, ProviderOpenAI)
	}
	if o.Model == "" {
		return fmt.Errorf("model is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if o.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if strings.TrimSpace(o.NotFoundSentinel) == "" {
		return fmt.Errorf("not_found_sentinel must not be empty")
	}
	return nil
}

// Validate checks the orchestrator configuration.
func (o *OrchestratorConfig) Validate() error {
	if o.ChangeThreshold < 0 || o.ChangeThreshold >= 100 {
		return fmt.Errorf("change_threshold must be in [0, 100)")
	}
	if o.SettleDelay <= 0 {
		return fmt.Errorf("settle_delay must be a positive duration")
	}
	if o.RegionSize <= 0 {
		return fmt.Errorf("region_size must be a positive integer")
	}
	if len(o.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	if len(o.Strategies) > maxOrchestratorStrategies {
		return fmt.Errorf("at most %d strategies are allowed, got %d", maxOrchestratorStrategies, len(o.Strategies))
	}
	for _, s := range o.Strategies {
		switch s {
		case StrategyFullScreen, StrategyCursorRegion, StrategyLastKnownRegion:
		default:
			return fmt.Errorf("unknown strategy %q", s)
		}
	}
	if o.Strategies[0] == StrategyLastKnownRegion {
		return fmt.Errorf("%q cannot be the first strategy", StrategyLastKnownRegion)
	}
	if o.RunTimeout < 0 {
		return fmt.Errorf("run_timeout must not be negative")
	}
	return nil
}

// Validate checks the calibration configuration.
func (c *CalibrationConfig) Validate() error {
	switch c.Backend {
	case CalibrationFile:
		if c.Path == "" {
			return fmt.Errorf("path is required for the %q backend", CalibrationFile)
		}
	case CalibrationPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the %q backend (hint: SIGHTCLICK_CALIBRATION_DATABASE_URL)", CalibrationPostgres)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
