// Package config loads the scan engine's persistent configuration: probe
// timeouts and retry policy, worker concurrency, proxy/TLS settings for
// outgoing probes, and where to find templates. It follows the same
// viper-backed, doc-annotated YAML file convention used throughout the
// engine's ambient tooling.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/emo-crab/observer-ward-sub000/internal/pkg/engerr"
)

// Config is the engine-wide configuration loaded from config.yaml, OBWARD_*
// environment variables, and command-line flags, in increasing priority
// order.
type Config struct {
	NoColor       bool          `yaml:"no-color" mapstructure:"no-color" doc:"Disable ANSI colors and styles"`
	Quiet         bool          `yaml:"quiet" mapstructure:"quiet" doc:"Suppress non-essential output"`
	Debug         bool          `yaml:"debug" mapstructure:"debug" doc:"Enable debug logging"`
	Timeouts      TimeoutConfig `yaml:"timeouts" mapstructure:"timeouts"`
	RetryStrategy RetryStrategy `yaml:"retry-strategy" mapstructure:"retry-strategy"`
	Probe         ProbeConfig   `yaml:"probe" mapstructure:"probe"`
	TemplateDirs  []string      `yaml:"template-dirs" mapstructure:"template-dirs" doc:"Directories to load fingerprint templates from"`
	MITM          MITMConfig    `yaml:"mitm" mapstructure:"mitm"`
}

// ProbeConfig controls how outgoing HTTP/TCP probes are built.
type ProbeConfig struct {
	Concurrency        int    `yaml:"concurrency" mapstructure:"concurrency" doc:"Number of targets fingerprinted concurrently"`
	UserAgent          string `yaml:"user-agent" mapstructure:"user-agent" doc:"User-Agent header sent with HTTP probes"`
	ProxyURL           string `yaml:"proxy-url" mapstructure:"proxy-url" doc:"Upstream HTTP(S) proxy for outgoing probes, empty to use the environment"`
	InsecureSkipVerify bool   `yaml:"insecure-skip-verify" mapstructure:"insecure-skip-verify" doc:"Skip TLS certificate verification for HTTPS probes"`
	FollowRedirects    bool   `yaml:"follow-redirects" mapstructure:"follow-redirects" doc:"Follow HTTP redirects while probing"`
	MaxRedirects       int    `yaml:"max-redirects" mapstructure:"max-redirects" doc:"Maximum redirects to follow per probe when follow-redirects is true"`
	OmitCertificate    bool   `yaml:"omit-certificate" mapstructure:"omit-certificate" doc:"Strip captured TLS peer certificates from results"`
	OmitRaw            bool   `yaml:"omit-raw" mapstructure:"omit-raw" doc:"Strip the raw request/response record from each fingerprint result"`
}

// MITMConfig controls the passive MITM proxy mode.
type MITMConfig struct {
	ListenAddr string   `yaml:"listen-addr" mapstructure:"listen-addr" doc:"Address the MITM proxy listens on"`
	CAFile     string   `yaml:"ca-file" mapstructure:"ca-file" doc:"PEM file containing the CA certificate used to sign intercepted hosts"`
	CAKeyFile  string   `yaml:"ca-key-file" mapstructure:"ca-key-file" doc:"PEM file containing the CA private key"`
	RuleDirs   []string `yaml:"rule-dirs" mapstructure:"rule-dirs" doc:"Directories to load MITM rule templates from"`
}

var defaultConfig = &Config{
	NoColor: false,
	Quiet:   false,
	Debug:   false,
	RetryStrategy: RetryStrategy{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Backoff:     BackoffFixed,
	},
	Timeouts: defaultTimeoutConfig,
	Probe: ProbeConfig{
		Concurrency:     25,
		UserAgent:       "observer-ward-sub000",
		FollowRedirects: true,
		MaxRedirects:    5,
	},
	TemplateDirs: []string{},
	MITM: MITMConfig{
		ListenAddr: "127.0.0.1:8443",
		RuleDirs:   []string{},
	},
}

const (
	noColorKey = "no-color"
	quietKey   = "quiet"
	debugKey   = "debug"
)

// New loads the config file from dataDir, writing a default one if none
// exists, then applies environment and flag overrides already bound to
// viper.
func New(dataDir string) (*Config, engerr.EngineError) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dataDir)
	viper.SetEnvPrefix("OBWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPath := filepath.Join(dataDir, "config.yaml")

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, newInvalidConfigError(fmt.Errorf("failed to read config file: %w", err).Error())
		}

		if err := setViperDefaults(defaultConfig); err != nil {
			return nil, err
		}

		if err := viper.WriteConfigAs(configPath); err != nil {
			return nil, newInvalidConfigError(fmt.Errorf("failed to write config file: %w", err).Error())
		}
	} else {
		// Config file was read successfully, but we still need to set defaults for any missing keys
		if err := setViperDefaults(defaultConfig); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := cfg.Unmarshal(); err != nil {
		return nil, err
	}

	if err := addDocCommentsToYAML(configPath, cfg); err != nil {
		return nil, newInvalidConfigError(fmt.Errorf("failed to add doc comments to config file: %w", err).Error())
	}

	return cfg, nil
}

func (c *Config) Unmarshal() engerr.EngineError {
	hooks := mapstructure.ComposeDecodeHookFunc(
		rejectNumericDurationHookFunc(),
		rejectNegativeDurationHookFunc(),
		mapstructure.StringToUint64HookFunc(),
		validateUint64HookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := viper.Unmarshal(c, viper.DecodeHook(hooks)); err != nil {
		return newInvalidConfigError(fmt.Errorf("failed to unmarshal config: %w", err).Error())
	}

	return nil
}

// BindGlobalFlags binds all global configuration flags to viper.
// This should be called on the root command.
func BindGlobalFlags(persistentFlags *pflag.FlagSet) error {
	if err := addPersistentBoolAndBind(persistentFlags, noColorKey, false, "disable ANSI colors and styles", ""); err != nil {
		return fmt.Errorf("failed to bind no-color flag: %w", err)
	}
	if err := addPersistentBoolAndBind(persistentFlags, quietKey, false, "suppress non-essential output", "q"); err != nil {
		return fmt.Errorf("failed to bind quiet flag: %w", err)
	}
	if err := addPersistentBoolAndBind(persistentFlags, debugKey, false, "enable debug logging", ""); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	return nil
}

// addPersistentBoolAndBind defines a persistent boolean flag and binds it to viper using the same key.
func addPersistentBoolAndBind(persistentFlags *pflag.FlagSet, name string, defaultValue bool, usage string, short string) error {
	if short != "" {
		persistentFlags.BoolP(name, short, defaultValue, usage)
	} else {
		persistentFlags.Bool(name, defaultValue, usage)
	}
	return viper.BindPFlag(name, persistentFlags.Lookup(name))
}
