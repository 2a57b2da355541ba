// Package metrics defines the report sink abstraction. Sinks such as the
// Prometheus gauges and the InfluxDB writer record every aggregated grid
// report and can be combined with NewMultiSink. The factory helpers return a
// MultiSink automatically when multiple sinks are configured.
package metrics
