package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emo-crab/observer-ward-sub000/internal/pkg/engerr"
)

func setupConfigTest(t *testing.T) (string, func()) {
	t.Helper()
	originalSettings := viper.AllSettings()
	tempDir := t.TempDir()
	viper.Reset()
	return tempDir, func() {
		viper.Reset()
		for key, value := range originalSettings {
			viper.Set(key, value)
		}
	}
}

func writeConfigFile(t *testing.T, tempDir, content string) {
	t.Helper()
	configPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(tempDir string) error
		override  func() error
		assert    func(t *testing.T, cfg *Config, tempDir string)
		assertErr func(t *testing.T, err engerr.EngineError)
	}{
		{
			name: "default_config_creation",
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 25, cfg.Probe.Concurrency)
				configPath := filepath.Join(tempDir, "config.yaml")
				_, err := os.Stat(configPath)
				assert.NoError(t, err)
				assert.Equal(t, 25, viper.GetInt("probe.concurrency"))
			},
		},
		{
			name: "existing_config_file",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("probe:\n  concurrency: 10\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 10, cfg.Probe.Concurrency)
				assert.Equal(t, 10, viper.GetInt("probe.concurrency"))
			},
		},
		{
			name: "viper_overrides",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("probe:\n  concurrency: 10\n"), 0o644)
			},
			override: func() error {
				viper.Set("probe.concurrency", 50)
				return nil
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 50, cfg.Probe.Concurrency)
				assert.Equal(t, 50, viper.GetInt("probe.concurrency"))
			},
		},
		{
			name: "template_dirs_written_to_yaml",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("template-dirs:\n  - ./templates\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				require.Contains(t, cfg.TemplateDirs, "./templates")

				configPath := filepath.Join(tempDir, "config.yaml")
				fileContent, err := os.ReadFile(configPath)
				require.NoError(t, err)
				configStr := string(fileContent)
				assert.Contains(t, configStr, "template-dirs:")
			},
		},
		{
			name: "valid_duration",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: 30s\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 30*time.Second, cfg.Timeouts.HTTP)
			},
		},
		{
			name: "integer_duration_rejected",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: 30\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "missing unit in duration")
			},
		},
		{
			name: "invalid_duration_string",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: \"30\"\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "missing unit in duration")
			},
		},
		{
			name: "custom_retry_strategy",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("retry-strategy.backoff: fixed\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, BackoffFixed, cfg.RetryStrategy.Backoff)
			},
		},
		{
			name: "invalid_backoff_type",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("retry-strategy.backoff: invalid\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid backoff type")
			},
		},
		{
			name: "malformed_yaml_config",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("probe:\n  concurrency: 10\n invalid: indentation\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				var invalidConfigErr InvalidConfigError
				assert.ErrorAs(t, err, &invalidConfigErr)
			},
		},
		{
			name: "invalid_yaml_syntax",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("probe:\n[invalid yaml"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				var invalidConfigErr InvalidConfigError
				assert.ErrorAs(t, err, &invalidConfigErr)
				assert.Contains(t, err.Error(), "failed to read config file")
			},
		},
		{
			name: "viper_override_invalid_duration",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: 30s\n"), 0o644)
			},
			override: func() error {
				viper.Set("timeouts.http", 30)
				return nil
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				var invalidConfigErr InvalidConfigError
				assert.ErrorAs(t, err, &invalidConfigErr)
				assert.Contains(t, err.Error(), "missing unit in duration")
			},
		},
		{
			name: "viper_override_invalid_backoff",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("retry-strategy.backoff: exponential\n"), 0o644)
			},
			override: func() error {
				viper.Set("retry-strategy.backoff", "invalid")
				return nil
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid backoff type")
			},
		},
		{
			name: "invalid_duration_format",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: invalid_duration\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				var invalidConfigErr InvalidConfigError
				assert.ErrorAs(t, err, &invalidConfigErr)
				assert.Contains(t, err.Error(), "failed to unmarshal config")
			},
		},
		{
			name: "negative_timeout_duration",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: -30s\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "value cannot be negative")
			},
		},
		{
			name: "zero_duration",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: 0s\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, time.Duration(0), cfg.Timeouts.HTTP)
			},
		},
		{
			name: "retry_config_invalid_max_attempts",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("retry-strategy.max-attempts: -1\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "value cannot be negative")
			},
		},
		{
			name: "retry_config_invalid_base_delay",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("retry-strategy.base-delay: invalid\n"), 0o644)
			},
			assertErr: func(t *testing.T, err engerr.EngineError) {
				var invalidConfigErr InvalidConfigError
				assert.ErrorAs(t, err, &invalidConfigErr)
				assert.Contains(t, err.Error(), "failed to unmarshal config")
			},
		},
		{
			name: "valid_retry_config_all_fields",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(`retry-strategy:
  max-attempts: 5
  base-delay: 1s
  max-delay: 60s
  backoff: exponential
`), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, uint64(5), cfg.RetryStrategy.MaxAttempts)
				assert.Equal(t, 1*time.Second, cfg.RetryStrategy.BaseDelay)
				assert.Equal(t, 60*time.Second, cfg.RetryStrategy.MaxDelay)
				assert.Equal(t, BackoffExponential, cfg.RetryStrategy.Backoff)
			},
		},
		{
			name: "all_boolean_flags_true",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(`no-color: true
quiet: true
debug: true
`), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.True(t, cfg.NoColor)
				assert.True(t, cfg.Quiet)
				assert.True(t, cfg.Debug)
			},
		},
		{
			name: "viper_override_boolean_flags",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(`no-color: false
debug: false
`), 0o644)
			},
			override: func() error {
				viper.Set("no-color", true)
				viper.Set("debug", true)
				return nil
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.True(t, cfg.NoColor)
				assert.True(t, cfg.Debug)
			},
		},
		{
			name: "empty_config_file",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(""), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 25, cfg.Probe.Concurrency)
				assert.Equal(t, 10*time.Second, cfg.Timeouts.HTTP)
				assert.Equal(t, BackoffFixed, cfg.RetryStrategy.Backoff)
				assert.Equal(t, uint64(2), cfg.RetryStrategy.MaxAttempts)
			},
		},
		{
			name: "config_with_comments",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(`# This is a comment
probe:
  concurrency: 15 # inline comment
# Another comment
timeouts:
  http: 45s
`), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 15, cfg.Probe.Concurrency)
				assert.Equal(t, 45*time.Second, cfg.Timeouts.HTTP)
			},
		},
		{
			name: "mitm_listen_addr_override",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("mitm:\n  listen-addr: 0.0.0.0:9000\n"), 0o644)
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, "0.0.0.0:9000", cfg.MITM.ListenAddr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalSettings := viper.AllSettings()
			defer func() {
				viper.Reset()
				for key, value := range originalSettings {
					viper.Set(key, value)
				}
			}()

			tempDir := t.TempDir()
			viper.Reset()

			if tt.setup != nil {
				err := tt.setup(tempDir)
				require.NoError(t, err)
			}

			if tt.override != nil {
				err := tt.override()
				require.NoError(t, err)
			}

			cfg, err := New(tempDir)
			if tt.assertErr != nil {
				tt.assertErr(t, err)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				tt.assert(t, cfg, tempDir)
			}
		})
	}
}

// TestConfigEnvironmentVariables tests environment variable overrides.
func TestConfigEnvironmentVariables(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(tempDir string) error
		envVars   map[string]string
		assert    func(t *testing.T, cfg *Config, tempDir string)
		assertErr func(t *testing.T, err engerr.EngineError)
	}{
		{
			name: "env_override_concurrency",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("probe:\n  concurrency: 10\n"), 0o644)
			},
			envVars: map[string]string{
				"OBWARD_PROBE_CONCURRENCY": "40",
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 40, cfg.Probe.Concurrency)
			},
		},
		{
			name: "env_override_timeout",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte("timeouts.http: 30s\n"), 0o644)
			},
			envVars: map[string]string{
				"OBWARD_TIMEOUTS_HTTP": "60s",
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.Equal(t, 60*time.Second, cfg.Timeouts.HTTP)
			},
		},
		{
			name: "env_override_boolean_flags",
			setup: func(tempDir string) error {
				configPath := filepath.Join(tempDir, "config.yaml")
				return os.WriteFile(configPath, []byte(`no-color: false
debug: false
`), 0o644)
			},
			envVars: map[string]string{
				"OBWARD_NO_COLOR": "true",
				"OBWARD_DEBUG":    "true",
			},
			assert: func(t *testing.T, cfg *Config, tempDir string) {
				assert.True(t, cfg.NoColor)
				assert.True(t, cfg.Debug)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalSettings := viper.AllSettings()
			defer func() {
				viper.Reset()
				for key, value := range originalSettings {
					viper.Set(key, value)
				}
			}()

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			tempDir := t.TempDir()
			viper.Reset()

			if tt.setup != nil {
				err := tt.setup(tempDir)
				require.NoError(t, err)
			}

			cfg, err := New(tempDir)
			if tt.assertErr != nil {
				tt.assertErr(t, err)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				tt.assert(t, cfg, tempDir)
			}
		})
	}
}

// TestConfigWriteErrors tests scenarios where config file writing might fail.
func TestConfigWriteErrors(t *testing.T) {
	t.Run("readonly_directory", func(t *testing.T) {
		originalSettings := viper.AllSettings()
		defer func() {
			viper.Reset()
			for key, value := range originalSettings {
				viper.Set(key, value)
			}
		}()

		tempDir := t.TempDir()
		viper.Reset()

		err := os.Chmod(tempDir, 0o444)
		require.NoError(t, err)
		defer func() { _ = os.Chmod(tempDir, 0o755) }()

		_, cfgErr := New(tempDir)
		var invalidConfigErr InvalidConfigError
		assert.ErrorAs(t, cfgErr, &invalidConfigErr)
		assert.Contains(t, cfgErr.Error(), "failed to write config file")
	})
}

// TestConfigDefaults tests that default values are correctly set.
func TestConfigDefaults(t *testing.T) {
	originalSettings := viper.AllSettings()
	defer func() {
		viper.Reset()
		for key, value := range originalSettings {
			viper.Set(key, value)
		}
	}()

	tempDir := t.TempDir()
	viper.Reset()

	cfg, err := New(tempDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.False(t, cfg.NoColor)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 25, cfg.Probe.Concurrency)
	assert.True(t, cfg.Probe.FollowRedirects)
	assert.Equal(t, 5, cfg.Probe.MaxRedirects)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.HTTP)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.TCP)
	assert.Equal(t, uint64(2), cfg.RetryStrategy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryStrategy.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.RetryStrategy.MaxDelay)
	assert.Equal(t, BackoffFixed, cfg.RetryStrategy.Backoff)
	assert.Equal(t, "127.0.0.1:8443", cfg.MITM.ListenAddr)

	configPath := filepath.Join(tempDir, "config.yaml")
	_, statErr := os.Stat(configPath)
	assert.NoError(t, statErr)
}

func TestConfig_DocComments_InitialCreation(t *testing.T) {
	originalSettings := viper.AllSettings()
	defer func() {
		viper.Reset()
		for key, value := range originalSettings {
			viper.Set(key, value)
		}
	}()

	tempDir := t.TempDir()
	viper.Reset()

	cfg, err := New(tempDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	configPath := filepath.Join(tempDir, "config.yaml")
	content, readErr := os.ReadFile(configPath)
	require.NoError(t, readErr)

	yamlStr := string(content)
	t.Logf("Generated config.yaml:\n%s", yamlStr)

	assert.Contains(t, yamlStr, "# Disable ANSI colors and styles")
	assert.Contains(t, yamlStr, "# Suppress non-essential output")
	assert.Contains(t, yamlStr, "# Enable debug logging")
	assert.Contains(t, yamlStr, "# Number of targets fingerprinted concurrently")
	assert.Contains(t, yamlStr, "# Backoff strategy (fixed|linear|exponential)")
}

func TestConfig_DocComments_LineFormat(t *testing.T) {
	originalSettings := viper.AllSettings()
	defer func() {
		viper.Reset()
		for key, value := range originalSettings {
			viper.Set(key, value)
		}
	}()

	tempDir := t.TempDir()
	viper.Reset()

	_, err := New(tempDir)
	require.NoError(t, err)

	configPath := filepath.Join(tempDir, "config.yaml")
	content, readErr := os.ReadFile(configPath)
	require.NoError(t, readErr)

	lines := strings.Split(string(content), "\n")

	foundInlineComment := false
	for _, line := range lines {
		if strings.Contains(line, "no-color:") && strings.Contains(line, "#") {
			foundInlineComment = true
			assert.Regexp(t, `no-color:\s+\S+\s+#\s+.+`, line)
			break
		}
	}
	assert.True(t, foundInlineComment, "Should have at least one inline comment")
}
