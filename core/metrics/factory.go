package metrics

import "github.com/kilianp07/edgegrid/core/factory"

var sinkRegistry = factory.NewRegistry[ReportSink]()

// RegisterSink adds a report sink factory identified by name.
func RegisterSink(name string, f factory.Factory[ReportSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink creates a ReportSink from the provided configuration.
func NewSink(cfgs []factory.ModuleConfig) (ReportSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]ReportSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}
