// Package factory turns `{type, conf}` configuration entries into concrete
// implementations. Packages own a Registry for their interface and adapters
// register into it from init.
//
//	var sinks = factory.NewRegistry[metrics.ReportSink]()
//
//	_ = sinks.Register("energy", func(conf map[string]any) (metrics.ReportSink, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newLedger(c.Path)
//	})
//
//	sink, err := sinks.Create(factory.ModuleConfig{Type: "energy", Conf: map[string]any{"path": "energy.db"}})
package factory
