// Package scenarios replays YAML described telemetry sequences through the
// balancing loop and checks the resulting grid view and storage commands.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/edgegrid/core/model"
)

// Command is a storage command the balancing loop is expected to issue.
type Command struct {
	Method  string  `yaml:"method"`
	PowerKW float64 `yaml:"power_kw"`
}

// Expected is checked after a step's balancing cycle.
type Expected struct {
	BalanceKW *float64  `yaml:"balance_kw,omitempty"`
	Alerts    []string  `yaml:"alerts"`
	Commands  []Command `yaml:"commands"`
}

// Step feeds telemetry then runs one balancing cycle.
type Step struct {
	Telemetry []map[string]any `yaml:"telemetry"`
	FailStore bool             `yaml:"fail_storage,omitempty"`
	Expect    Expected         `yaml:"expect"`
}

// Payloads converts the step's telemetry into transport payloads.
func (s Step) Payloads() []model.Payload {
	out := make([]model.Payload, len(s.Telemetry))
	for i, t := range s.Telemetry {
		out[i] = model.Payload(t)
	}
	return out
}

type Scenario struct {
	Name          string  `yaml:"name"`
	Description   string  `yaml:"description,omitempty"`
	ThresholdKW   float64 `yaml:"threshold_kw"`
	MaxCommandKW  float64 `yaml:"max_command_kw"`
	StorageModule string  `yaml:"storage_module,omitempty"`
	Steps         []Step  `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &sc, nil
}
