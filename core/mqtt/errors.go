package mqtt

import "errors"

var (
	// ErrPublishTimeout is returned when the broker does not confirm a publish in time.
	ErrPublishTimeout = errors.New("timeout waiting for publish")
	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("mqtt client not connected")
)
