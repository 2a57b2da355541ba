package config

// ModuleConfig identifies this process on the bus.
type ModuleConfig struct {
	// ID is the module identity used in topics. Asset commands override it
	// with their own module name.
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
}

// SetDefaults applies the controller identity.
func (c *ModuleConfig) SetDefaults() {
	if c.ID == "" {
		c.ID = "controller-module"
	}
	if c.DeviceID == "" {
		c.DeviceID = "edge-device-01"
	}
}
