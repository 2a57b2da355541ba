package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/edgegrid/core/dispatch"
)

// ControllerConfig tunes the balancing and reporting loops.
type ControllerConfig struct {
	IntervalSeconds       int            `json:"interval_seconds"`
	ReportIntervalSeconds int            `json:"report_interval_seconds"`
	SurplusThresholdKW    float64        `json:"surplus_threshold_kw"`
	StorageModule         string         `json:"storage_module"`
	MaxCommandKW          float64        `json:"max_command_kw"`
	Dispatch              DispatchConfig `json:"dispatch"`
}

// DispatchConfig is the retry policy for commands.
type DispatchConfig struct {
	// MaxRetries is optional so an explicit 0 disables retries.
	MaxRetries     *int `json:"max_retries"`
	RetryDelayMS   int  `json:"retry_delay_ms"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

// SetDefaults applies the reference values.
func (c *ControllerConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 30
	}
	if c.ReportIntervalSeconds <= 0 {
		c.ReportIntervalSeconds = c.IntervalSeconds
	}
	if c.SurplusThresholdKW <= 0 {
		c.SurplusThresholdKW = 10
	}
	if c.StorageModule == "" {
		c.StorageModule = "battery-module"
	}
	if c.MaxCommandKW <= 0 {
		c.MaxCommandKW = 50
	}
	if c.Dispatch.MaxRetries == nil {
		n := dispatch.DefaultMaxRetries
		c.Dispatch.MaxRetries = &n
	}
	if c.Dispatch.RetryDelayMS <= 0 {
		c.Dispatch.RetryDelayMS = int(dispatch.DefaultRetryDelay / time.Millisecond)
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		c.Dispatch.TimeoutSeconds = int(dispatch.DefaultTimeout / time.Second)
	}
}

// Validate rejects negative retry counts.
func (c ControllerConfig) Validate() error {
	if c.Dispatch.MaxRetries != nil && *c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	return nil
}

// Interval is the balancing period.
func (c ControllerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ReportInterval is the cloud reporting period.
func (c ControllerConfig) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalSeconds) * time.Second
}

// DispatchPolicy converts the section into a dispatch.Config.
func (c ControllerConfig) DispatchPolicy() dispatch.Config {
	out := dispatch.DefaultConfig()
	if c.Dispatch.MaxRetries != nil {
		out.MaxRetries = *c.Dispatch.MaxRetries
	}
	if c.Dispatch.RetryDelayMS > 0 {
		out.RetryDelay = time.Duration(c.Dispatch.RetryDelayMS) * time.Millisecond
	}
	if c.Dispatch.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(c.Dispatch.TimeoutSeconds) * time.Second
	}
	return out
}
