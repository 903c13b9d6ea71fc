// Package poller drives a generation job from start to a terminal stop.
package poller

import "time"

// Config defines the polling schedule and session caps.
type Config struct {
	// InitialDelay is the wait before the first status check.
	InitialDelay time.Duration `yaml:"initial_delay"`
	// Interval is the wait between status checks.
	Interval time.Duration `yaml:"interval"`
	// MaxAttempts stops the session once this many checks have completed.
	MaxAttempts int `yaml:"max_attempts"`
	// SoftTimeout stops the session regardless of stage once exceeded.
	SoftTimeout time.Duration `yaml:"soft_timeout"`
	// HardTimeout is the absolute session cap.
	HardTimeout time.Duration `yaml:"hard_timeout"`
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() *Config {
	return &Config{
		InitialDelay: 1 * time.Second,
		Interval:     2 * time.Second,
		MaxAttempts:  150,
		SoftTimeout:  2 * time.Minute,
		HardTimeout:  5 * time.Minute,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.InitialDelay <= 0 {
		out.InitialDelay = d.InitialDelay
	}
	if out.Interval <= 0 {
		out.Interval = d.Interval
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = d.MaxAttempts
	}
	if out.SoftTimeout <= 0 {
		out.SoftTimeout = d.SoftTimeout
	}
	if out.HardTimeout <= 0 {
		out.HardTimeout = d.HardTimeout
	}
	return &out
}
