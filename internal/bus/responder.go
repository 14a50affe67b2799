package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/buffermesh/buffermesh/internal/logging"
)

// KindHealthCheck and KindHealthStatus are the built-in liveness command
// every responder answers.
const (
	KindHealthCheck  = "healthcheck"
	KindHealthStatus = "health_status"
)

// CommandTopic returns the shared command topic for a service role.
func CommandTopic(prefix, service string) string {
	return fmt.Sprintf("%s.cmd.%s", prefix, service)
}

// HealthStatus is the reply body for a healthcheck command.
type HealthStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// CommandHandler serves one command kind: it decodes the body, runs the
// operation, and returns the reply kind and body. A returned error is
// translated to a KindError reply with a stable wire code.
type CommandHandler func(ctx context.Context, body json.RawMessage) (string, any, error)

// Responder listens on a service's command topic and dispatches inbound
// envelopes over a closed set of registered command kinds. Replies are
// published to the envelope's reply topic, keyed by the correlation ID.
type Responder struct {
	transport Transport
	topic     string
	service   string
	logger    logging.Logger

	mu       sync.RWMutex
	handlers map[string]CommandHandler

	unsubscribe func()
}

// NewResponder builds a responder for the service's command topic. The
// built-in healthcheck handler is registered up front.
func NewResponder(transport Transport, topic, service string, logger logging.Logger) *Responder {
	r := &Responder{
		transport: transport,
		topic:     topic,
		service:   service,
		logger:    logger.With("module", "bus_responder", "service", service),
		handlers:  make(map[string]CommandHandler),
	}
	r.Handle(KindHealthCheck, func(ctx context.Context, _ json.RawMessage) (string, any, error) {
		return KindHealthStatus, HealthStatus{Service: service, Status: "ok"}, nil
	})
	return r
}

// Handle registers h for the given command kind, replacing any previous
// registration.
func (r *Responder) Handle(kind string, h CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Start subscribes the responder to its command topic.
func (r *Responder) Start() error {
	unsubscribe, err := r.transport.Subscribe(r.topic, r.dispatch)
	if err != nil {
		return fmt.Errorf("subscribe command topic: %w", err)
	}
	r.unsubscribe = unsubscribe
	return nil
}

// Close stops consuming commands.
func (r *Responder) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

func (r *Responder) dispatch(ctx context.Context, key string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		r.logger.Warn(ctx, "dropping undecodable command", "error", err)
		return
	}

	r.mu.RLock()
	handler, ok := r.handlers[env.Kind]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn(ctx, "unknown command kind", "kind", env.Kind, "correlation_id", env.CorrelationID)
		r.reply(ctx, env, KindError, RemoteError{Code: CodeUnknownCommand, Message: env.Kind})
		return
	}

	replyKind, body, err := handler(ctx, env.Body)
	if err != nil {
		r.reply(ctx, env, KindError, RemoteError{Code: CodeForError(err), Message: err.Error()})
		return
	}
	r.reply(ctx, env, replyKind, body)
}

// reply publishes the response envelope. Commands without a reply topic
// are fire-and-forget; there is nobody to answer.
func (r *Responder) reply(ctx context.Context, command *Envelope, kind string, body any) {
	if command.ReplyTopic == "" {
		return
	}

	env, err := NewEnvelope(command.CorrelationID, "", kind, body)
	if err != nil {
		r.logger.Error(ctx, "encode reply failed", "error", err, "correlation_id", command.CorrelationID)
		return
	}
	payload, err := env.Encode()
	if err != nil {
		r.logger.Error(ctx, "encode reply failed", "error", err, "correlation_id", command.CorrelationID)
		return
	}
	if err := r.transport.Publish(ctx, command.ReplyTopic, command.CorrelationID, payload); err != nil {
		r.logger.Error(ctx, "publish reply failed", "error", err, "correlation_id", command.CorrelationID)
	}
}
