package config

import (
	"encoding"
	"errors"
	"fmt"
	"time"
)

// RetryStrategy holds the retry settings loaded from config for a probe
// that hits a transient network failure (connection refused/reset,
// timeout), and Delay computes the wait before each attempt. No probe code
// in this module reads these settings: every probe is sent once.
type RetryStrategy struct {
	MaxAttempts uint64        `yaml:"max-attempts" mapstructure:"max-attempts" doc:"Number of probe attempts before giving up on a target"`
	BaseDelay   time.Duration `yaml:"base-delay" mapstructure:"base-delay" doc:"Delay before the first retry"`
	MaxDelay    time.Duration `yaml:"max-delay" mapstructure:"max-delay" doc:"Upper bound on retry delay"`
	Backoff     BackoffType   `yaml:"backoff" mapstructure:"backoff" doc:"Backoff strategy (fixed|linear|exponential)"`
}

var defaultRetryStrategy = RetryStrategy{
	MaxAttempts: 2,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Backoff:     BackoffFixed,
}

// Delay returns the delay to apply before the given retry attempt (0-indexed).
func (r RetryStrategy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch r.Backoff {
	case BackoffExponential:
		d = r.BaseDelay * time.Duration(int64(1)<<uint(attempt))
	case BackoffLinear:
		d = r.BaseDelay * time.Duration(attempt+1)
	default:
		d = r.BaseDelay
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
	BackoffLinear      BackoffType = "linear"
)

var ErrInvalidBackoffType = errors.New("invalid backoff type")

func (b BackoffType) String() string {
	return string(b)
}

var _ encoding.TextUnmarshaler = (*BackoffType)(nil)

func (b *BackoffType) UnmarshalText(text []byte) error {
	s := string(text)
	switch s {
	case "fixed":
		*b = BackoffFixed
	case "exponential":
		*b = BackoffExponential
	case "linear":
		*b = BackoffLinear
	default:
		return fmt.Errorf("%w: %s", ErrInvalidBackoffType, s)
	}
	return nil
}
