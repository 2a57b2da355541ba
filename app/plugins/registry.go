// Package plugins holds the factories that turn configuration entries into
// transport bindings.
package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/edgegrid/core/factory"
	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

// Env carries process wide resources a binding may need.
type Env struct {
	// Broker backs the in-process binding. All modules of one process share it.
	Broker *eventbus.Broker
	Log    logger.Logger
}

// BindingFactory builds a PubSub for module from raw configuration.
type BindingFactory func(module string, conf map[string]any, env Env) (transport.PubSub, error)

var Bindings = map[string]BindingFactory{}

func RegisterBinding(name string, f BindingFactory) { Bindings[name] = f }

// NewPubSub instantiates the binding named by cfg.Type for module.
func NewPubSub(module string, cfg factory.ModuleConfig, env Env) (transport.PubSub, error) {
	f, ok := Bindings[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown transport type %s (known: %v)", cfg.Type, BindingNames())
	}
	if env.Log == nil {
		env.Log = logger.NopLogger{}
	}
	return f(module, cfg.Conf, env)
}

// BindingNames lists the registered bindings in order.
func BindingNames() []string {
	names := make([]string, 0, len(Bindings))
	for n := range Bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
