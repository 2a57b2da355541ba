package metrics

import "github.com/kilianp07/edgegrid/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	// PrometheusAddr is the listen address of the /metrics endpoint. Empty
	// disables the HTTP server.
	PrometheusAddr string                 `json:"prometheus_addr"`
	Sinks          []factory.ModuleConfig `json:"sinks"`
}
