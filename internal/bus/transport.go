// Package bus implements the asynchronous command bus shared by all
// services: a pluggable pub/sub Transport, a JSON envelope carrying a type
// discriminator and correlation metadata, a correlation Router that turns
// the bus into request/response calls, and a Responder that serves typed
// commands on the other side.
package bus

import "context"

// Handler consumes one delivered payload. Delivery is at-least-once and
// unordered across topics; handlers must tolerate duplicates.
type Handler func(ctx context.Context, key string, payload []byte)

// Transport is the pub/sub abstraction the bus rides on.
type Transport interface {
	// Publish sends payload to every subscriber of topic. The key is
	// opaque routing metadata (the router uses the correlation ID).
	Publish(ctx context.Context, topic, key string, payload []byte) error

	// Subscribe registers h for topic and returns an unsubscribe func.
	Subscribe(topic string, h Handler) (func(), error)
}
