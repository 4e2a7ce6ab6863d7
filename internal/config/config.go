// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/scriptfill/internal/detect"
	"github.com/xkilldash9x/scriptfill/internal/insert"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Detection() DetectionConfig
	Store() StoreConfig

	SetBrowserHeadless(bool)
	SetDetectionInsertMode(string)
	SetDetectionDebug(bool)
	SetStoreType(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	DetectionCfg DetectionConfig `mapstructure:"detection" yaml:"detection"`
	StoreCfg     StoreConfig     `mapstructure:"store" yaml:"store"`
}

var _ Interface = (*Config)(nil)

// --- Getters ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Detection() DetectionConfig { return c.DetectionCfg }
func (c *Config) Store() StoreConfig         { return c.StoreCfg }

// --- Setters ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetDetectionInsertMode(m string) { c.DetectionCfg.InsertMode = m }
func (c *Config) SetDetectionDebug(b bool)        { c.DetectionCfg.Debug = b }
func (c *Config) SetStoreType(t string)           { c.StoreCfg.Type = t }

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

type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the live Chrome session used by detect and fill.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	FocusWait         time.Duration  `mapstructure:"focus_wait" yaml:"focus_wait"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// DetectionConfig tunes candidate scoring and insertion.
type DetectionConfig struct {
	HistoryCapacity int            `mapstructure:"history_capacity" yaml:"history_capacity"`
	WidgetRootID    string         `mapstructure:"widget_root_id" yaml:"widget_root_id"`
	InsertMode      string         `mapstructure:"insert_mode" yaml:"insert_mode"`
	SettleDelay     time.Duration  `mapstructure:"settle_delay" yaml:"settle_delay"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	Weights         detect.Weights `mapstructure:"weights" yaml:"weights"`
	Keywords        KeywordConfig  `mapstructure:"keywords" yaml:"keywords"`
}

// KeywordConfig lists keywords merged into the built-in rule set.
type KeywordConfig struct {
	Search  []string `mapstructure:"search" yaml:"search"`
	Message []string `mapstructure:"message" yaml:"message"`
	Contact []string `mapstructure:"contact" yaml:"contact"`
}

// Rules returns the built-in rule set extended with the configured keywords.
func (d DetectionConfig) Rules() *detect.Rules {
	return detect.DefaultRules().WithExtraKeywords(d.Keywords.Search, d.Keywords.Message, d.Keywords.Contact)
}

// StoreConfig selects and configures the script repository.
type StoreConfig struct {
	Type     string          `mapstructure:"type" yaml:"type"`
	File     FileStoreConfig `mapstructure:"file" yaml:"file"`
	Postgres PostgresConfig  `mapstructure:"postgres" yaml:"postgres"`
	Remote   RemoteConfig    `mapstructure:"remote" yaml:"remote"`
}

type FileStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type RemoteConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Token     string        `mapstructure:"token" yaml:"-"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int           `mapstructure:"burst" yaml:"burst"`
}

// Store backend names.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRemote   = "remote"
)

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scriptfill")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.focus_wait", "0s")
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 768})

	// -- Detection --
	v.SetDefault("detection.history_capacity", detect.DefaultHistoryCapacity)
	v.SetDefault("detection.widget_root_id", "scriptfill-widget")
	v.SetDefault("detection.insert_mode", string(insert.ModeReplace))
	v.SetDefault("detection.settle_delay", insert.DefaultSettleDelay)
	v.SetDefault("detection.debug", false)
	w := detect.DefaultWeights()
	v.SetDefault("detection.weights.focused", w.Focused)
	v.SetDefault("detection.weights.last_focused", w.LastFocused)
	v.SetDefault("detection.weights.history_step", w.HistoryStep)
	v.SetDefault("detection.weights.visible", w.Visible)
	v.SetDefault("detection.weights.fully_on_screen", w.FullyOnScreen)
	v.SetDefault("detection.weights.lower_half", w.LowerHalf)
	v.SetDefault("detection.weights.area_in_range", w.AreaInRange)
	v.SetDefault("detection.weights.area_too_small", w.AreaTooSmall)
	v.SetDefault("detection.weights.area_too_large", w.AreaTooLarge)
	v.SetDefault("detection.weights.center_proximity", w.CenterProximity)
	v.SetDefault("detection.weights.kind_textarea", w.KindTextarea)
	v.SetDefault("detection.weights.kind_editable", w.KindEditable)
	v.SetDefault("detection.weights.kind_input", w.KindInput)
	v.SetDefault("detection.weights.search_penalty", w.SearchPenalty)
	v.SetDefault("detection.weights.min_area", w.MinArea)
	v.SetDefault("detection.weights.max_area_ratio", w.MaxAreaRatio)

	// -- Store --
	v.SetDefault("store.type", StoreFile)
	v.SetDefault("store.file.path", "~/.scriptfill/scripts.yaml")
	v.SetDefault("store.remote.timeout", "15s")
	v.SetDefault("store.remote.rate_limit", 5.0)
	v.SetDefault("store.remote.burst", 2)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment only.
	_ = v.BindEnv("store.remote.token", "SCRIPTFILL_REMOTE_TOKEN")
	_ = v.BindEnv("store.postgres.url", "SCRIPTFILL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.StoreCfg.File.Path != "" {
		expanded, err := homedir.Expand(cfg.StoreCfg.File.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand store.file.path: %w", err)
		}
		cfg.StoreCfg.File.Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.DetectionCfg.Validate(); err != nil {
		return fmt.Errorf("detection configuration invalid: %w", err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.BrowserCfg.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must not be negative")
	}
	return nil
}

// Validate checks the detection settings.
func (d DetectionConfig) Validate() error {
	if d.HistoryCapacity < 1 || d.HistoryCapacity > 10 {
		return fmt.Errorf("history_capacity must be between 1 and 10")
	}
	if _, err := insert.ParseMode(d.InsertMode); err != nil {
		return err
	}
	if d.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if d.Weights.MaxAreaRatio <= 0 || d.Weights.MaxAreaRatio > 1 {
		return fmt.Errorf("weights.max_area_ratio must be in (0, 1]")
	}
	if d.Weights.MinArea < 0 {
		return fmt.Errorf("weights.min_area must not be negative")
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (s StoreConfig) Validate() error {
	switch strings.ToLower(s.Type) {
	case StoreFile:
		if s.File.Path == "" {
			return fmt.Errorf("file.path is required for the file store")
		}
	case StorePostgres:
		if s.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required for the postgres store. Ensure SCRIPTFILL_DATABASE_URL is set")
		}
	case StoreRemote:
		if s.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required for the remote store")
		}
		if s.Remote.RateLimit <= 0 {
			return fmt.Errorf("remote.rate_limit must be positive")
		}
	default:
		return fmt.Errorf("unknown store type %q", s.Type)
	}
	return nil
}
