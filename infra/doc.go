// Package infra holds the adapters around the allocation core: the paho MQTT
// transport, metrics sinks, the thruster health monitor, tracing and error
// reporting. They depend on the interfaces declared under core.
package infra
