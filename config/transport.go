package config

import (
	"fmt"

	"github.com/kilianp07/edgegrid/core/factory"
)

// Transport binding names.
const (
	TransportLocal = "local"
	TransportMQTT  = "mqtt"
	TransportMQTT5 = "mqtt5"
)

// TransportConfig selects the PubSub binding and its settings.
type TransportConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
	// ExtraTopics are subscribed in addition to the module's own topics,
	// e.g. edge/+/outputs/telemetry for the controller.
	ExtraTopics []string `json:"extra_topics"`
}

// Module returns the factory entry for the binding.
func (c TransportConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}

// SetDefaults selects the in-process binding.
func (c *TransportConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = TransportLocal
	}
}

// Validate checks the binding name.
func (c TransportConfig) Validate() error {
	switch c.Type {
	case TransportLocal, TransportMQTT, TransportMQTT5:
		return nil
	default:
		return fmt.Errorf("unknown transport type %q", c.Type)
	}
}
