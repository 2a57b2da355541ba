// Package infra contains technical adapters such as MQTT clients,
// metrics exporters and the SQLite energy store. These packages should
// depend only on the interfaces defined in the core packages.
package infra
