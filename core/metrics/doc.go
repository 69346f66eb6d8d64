// Package metrics defines interfaces for collecting allocation metrics.
// Sinks like PromSink and InfluxSink record allocation cycles, de-rating
// retries and thruster health transitions, and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
