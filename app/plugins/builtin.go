package plugins

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/edgegrid/config"
	"github.com/kilianp07/edgegrid/core/factory"
	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/mqtt"
	"github.com/kilianp07/edgegrid/infra/mqtt5"
)

func init() {
	RegisterBinding(config.TransportLocal, func(module string, _ map[string]any, env Env) (transport.PubSub, error) {
		if env.Broker == nil {
			return nil, fmt.Errorf("local transport needs a shared broker")
		}
		return env.Broker.Conn(module), nil
	})

	RegisterBinding(config.TransportMQTT, func(module string, conf map[string]any, env Env) (transport.PubSub, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.ClientID = clientID(c.ClientID, module)
		return mqtt.NewClient(c, env.Log)
	})

	RegisterBinding(config.TransportMQTT5, func(module string, conf map[string]any, env Env) (transport.PubSub, error) {
		var c mqtt5.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.ClientID = clientID(c.ClientID, module)
		return mqtt5.NewClient(c, env.Log)
	})
}

// clientID keeps broker client ids unique when several modules share one
// configuration.
func clientID(base, module string) string {
	if base == "" {
		return module + "-" + uuid.NewString()[:8]
	}
	return base + "-" + module
}
