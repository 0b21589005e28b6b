package config

import (
	"time"
)

// TimeoutConfig sets per-probe timeouts. A value of 0 disables the timeout.
type TimeoutConfig struct {
	HTTP time.Duration `yaml:"http" mapstructure:"http" doc:"Per-request timeout for HTTP probes (e.g. 10s, 1m). Set to 0 to disable"`
	TCP  time.Duration `yaml:"tcp" mapstructure:"tcp" doc:"Per-connection timeout for TCP probes (e.g. 5s). Set to 0 to disable"`
}

var defaultTimeoutConfig = TimeoutConfig{
	HTTP: 10 * time.Second,
	TCP:  5 * time.Second,
}
