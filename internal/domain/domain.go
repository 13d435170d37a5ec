// Package domain provides the core interfaces shared across the gateway.
package domain

import "context"

// Pair is one flattened telemetry reading: a topic and its textual payload.
type Pair struct {
	Topic   string
	Payload string
}

// Device is the capability interface the polling scheduler works against. Both
// inverter families implement it; the scheduler never branches on the concrete
// protocol.
type Device interface {
	// Address returns the device's bus address.
	Address() byte

	// Status returns the device's current availability as text.
	Status() string

	// Poll runs one full protocol-specific poll sequence against the bus.
	Poll() error

	// Flatten renders the device's current telemetry snapshot, stale or not,
	// as topic/payload pairs under the given prefix.
	Flatten(topicPrefix string) []Pair
}

// MessagePublisher defines the outbound telemetry transport.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends a payload to the specified topic
	Publish(ctx context.Context, topic string, payload string) error

	// Close terminates the connection to the messaging system
	Close() error
}
