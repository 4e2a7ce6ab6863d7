// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scriptfill/internal/detect"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "scriptfill", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 1366, cfg.Browser().Viewport["width"])
	assert.Equal(t, detect.DefaultHistoryCapacity, cfg.Detection().HistoryCapacity)
	assert.Equal(t, "replace", cfg.Detection().InsertMode)
	assert.Equal(t, 50*time.Millisecond, cfg.Detection().SettleDelay)
	assert.Equal(t, detect.DefaultWeights(), cfg.Detection().Weights)
	assert.Equal(t, StoreFile, cfg.Store().Type)
	assert.Equal(t, 5.0, cfg.Store().Remote.RateLimit)

	// Defaults hold a "~" path; only NewConfigFromViper expands it.
	assert.NoError(t, cfg.Detection().Validate())
	assert.NoError(t, cfg.Store().Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		badNav := *cfg
		badNav.BrowserCfg.NavigationTimeout = -time.Second
		assert.ErrorContains(t, badNav.Validate(), "browser.navigation_timeout must not be negative")
	})

	t.Run("Detection Validation", func(t *testing.T) {
		valid := NewDefaultConfig().DetectionCfg
		assert.NoError(t, valid.Validate())

		cases := map[string]func(d *DetectionConfig){
			"history_capacity must be between 1 and 10": func(d *DetectionConfig) { d.HistoryCapacity = 11 },
			"unknown insert mode":                       func(d *DetectionConfig) { d.InsertMode = "append" },
			"settle_delay must not be negative":         func(d *DetectionConfig) { d.SettleDelay = -time.Millisecond },
			"weights.max_area_ratio must be in (0, 1]":  func(d *DetectionConfig) { d.Weights.MaxAreaRatio = 1.5 },
			"weights.min_area must not be negative":     func(d *DetectionConfig) { d.Weights.MinArea = -1 },
		}
		for want, mutate := range cases {
			d := valid
			mutate(&d)
			assert.ErrorContains(t, d.Validate(), want)
		}
	})

	t.Run("Store Validation", func(t *testing.T) {
		assert.NoError(t, (&StoreConfig{Type: StoreFile, File: FileStoreConfig{Path: "/tmp/s.yaml"}}).Validate())
		assert.ErrorContains(t, (&StoreConfig{Type: StoreFile}).Validate(), "file.path is required")

		assert.ErrorContains(t, (&StoreConfig{Type: StorePostgres}).Validate(), "SCRIPTFILL_DATABASE_URL")
		assert.NoError(t, (&StoreConfig{Type: "Postgres", Postgres: PostgresConfig{URL: "postgres://localhost/db"}}).Validate())

		remote := StoreConfig{Type: StoreRemote, Remote: RemoteConfig{BaseURL: "https://scripts.example.com", RateLimit: 1}}
		assert.NoError(t, remote.Validate())
		remote.Remote.RateLimit = 0
		assert.ErrorContains(t, remote.Validate(), "remote.rate_limit must be positive")
		remote.Remote.BaseURL = ""
		assert.ErrorContains(t, remote.Validate(), "remote.base_url is required")

		assert.ErrorContains(t, (&StoreConfig{Type: "redis"}).Validate(), `unknown store type "redis"`)
	})
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
browser:
  headless: false
  args: ["--lang=vi"]
detection:
  history_capacity: 3
  insert_mode: cursor
  settle_delay: 120ms
  weights:
    focused: 900
  keywords:
    search: ["lookup"]
store:
  type: file
  file:
    path: ~/scripts.yaml
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, []string{"--lang=vi"}, cfg.Browser().Args)
	assert.Equal(t, 3, cfg.Detection().HistoryCapacity)
	assert.Equal(t, "cursor", cfg.Detection().InsertMode)
	assert.Equal(t, 120*time.Millisecond, cfg.Detection().SettleDelay)
	assert.Equal(t, 900.0, cfg.Detection().Weights.Focused)
	assert.Equal(t, detect.DefaultWeights().LastFocused, cfg.Detection().Weights.LastFocused, "unset weights keep defaults")

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, home+"/scripts.yaml", cfg.Store().File.Path)

	rules := cfg.Detection().Rules()
	assert.Contains(t, rules.SearchKeywords, "lookup")
	assert.Greater(t, len(rules.SearchKeywords), 1)
}

func TestNewConfigFromViper_SecretsFromEnv(t *testing.T) {
	t.Setenv("SCRIPTFILL_DATABASE_URL", "postgres://u:p@db/scripts")
	t.Setenv("SCRIPTFILL_REMOTE_TOKEN", "s3cret")

	v := viper.New()
	SetDefaults(v)
	v.Set("store.type", StorePostgres)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/scripts", cfg.Store().Postgres.URL)
	assert.Equal(t, "s3cret", cfg.Store().Remote.Token)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("detection.history_capacity", -2)

	_, err := NewConfigFromViper(v)
	assert.ErrorContains(t, err, "invalid configuration")
	assert.ErrorContains(t, err, "history_capacity")
}

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetDetectionInsertMode("cursor")
	cfg.SetDetectionDebug(true)
	cfg.SetStoreType(StoreRemote)

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "cursor", cfg.Detection().InsertMode)
	assert.True(t, cfg.Detection().Debug)
	assert.Equal(t, StoreRemote, cfg.Store().Type)
}
