package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/logging"
	"github.com/google/uuid"
)

type callResult struct {
	body json.RawMessage
	err  error
}

// pendingCall parks one in-flight call. The done channel is buffered so
// the resolving side never blocks; resolution happens at most once because
// every path claims the table entry with LoadAndDelete before touching it.
type pendingCall struct {
	kind string
	done chan callResult
}

// Router turns the asynchronous bus into synchronous-looking calls. Each
// process owns one Router per bus connection; its reply topic is derived
// at startup so responses are never misdelivered to another instance of
// the same service.
//
// Pending calls live only in memory: a process restart fails every
// in-flight call, and callers must treat that as "unknown outcome".
type Router struct {
	transport  Transport
	replyTopic string
	logger     logging.Logger

	pending sync.Map // correlation ID -> *pendingCall

	unsubscribe func()
}

// NewRouter derives the per-process reply topic, subscribes the reply
// listener, and returns the ready router.
func NewRouter(transport Transport, topicPrefix, serviceName string, logger logging.Logger) (*Router, error) {
	suffix, err := common.MakeRandHexString(8)
	if err != nil {
		return nil, fmt.Errorf("derive reply topic: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	r := &Router{
		transport:  transport,
		replyTopic: fmt.Sprintf("%s.reply.%s.%s-%s", topicPrefix, serviceName, host, suffix),
		logger:     logger.With("module", "bus_router", "service", serviceName),
	}

	unsubscribe, err := transport.Subscribe(r.replyTopic, r.handleReply)
	if err != nil {
		return nil, fmt.Errorf("subscribe reply topic: %w", err)
	}
	r.unsubscribe = unsubscribe

	return r, nil
}

// ReplyTopic returns this process's reply topic.
func (r *Router) ReplyTopic() string {
	return r.replyTopic
}

// Close stops the reply listener. Outstanding calls are left to their
// timeouts.
func (r *Router) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// handleReply resolves the pending call addressed by an inbound response.
// LoadAndDelete claims the entry atomically, so a response racing a
// timeout resolves the call exactly once; the loser finds no entry. Late
// responses and foreign correlation IDs are logged and dropped, never
// surfaced as errors, because no caller is waiting for them.
func (r *Router) handleReply(ctx context.Context, key string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		r.logger.Warn(ctx, "dropping undecodable reply", "error", err)
		return
	}

	value, ok := r.pending.LoadAndDelete(env.CorrelationID)
	if !ok {
		r.logger.Info(ctx, "dropping reply with no pending call", "correlation_id", env.CorrelationID)
		return
	}
	pc := value.(*pendingCall)

	switch env.Kind {
	case pc.kind:
		pc.done <- callResult{body: env.Body}
	case KindError:
		remote := &RemoteError{}
		if err := env.DecodeBody(remote); err != nil {
			pc.done <- callResult{err: common.ErrTypeMismatch}
			return
		}
		pc.done <- callResult{err: ErrorFromCode(remote.Code, remote.Message)}
	default:
		r.logger.Warn(ctx, "response kind mismatch",
			"correlation_id", env.CorrelationID, "want", pc.kind, "got", env.Kind)
		pc.done <- callResult{err: common.ErrTypeMismatch}
	}
}

// Call publishes a command and waits for its typed response.
//
// The command is wrapped in an envelope carrying a fresh correlation ID
// and this router's reply topic, and published keyed by the correlation
// ID. The call resolves with exactly one of: the decoded response, a
// common.ErrTypeMismatch for a response of the wrong kind, a
// common.ErrCallTimeout once timeout elapses, or a common.ErrTransport if
// the publish itself fails (immediately, without waiting out the timeout).
func Call[T any](ctx context.Context, r *Router, topic, kind string, command any, responseKind string, timeout time.Duration) (T, error) {
	var zero T

	correlationID := uuid.NewString()
	pc := &pendingCall{kind: responseKind, done: make(chan callResult, 1)}
	r.pending.Store(correlationID, pc)

	env, err := NewEnvelope(correlationID, r.replyTopic, kind, command)
	if err != nil {
		r.pending.Delete(correlationID)
		return zero, err
	}
	payload, err := env.Encode()
	if err != nil {
		r.pending.Delete(correlationID)
		return zero, err
	}

	if err := r.transport.Publish(ctx, topic, correlationID, payload); err != nil {
		r.pending.Delete(correlationID)
		return zero, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pc.done:
		return decodeResult[T](res)
	case <-timer.C:
		if _, ok := r.pending.LoadAndDelete(correlationID); ok {
			return zero, common.ErrCallTimeout
		}
		// The listener claimed the entry just before the timeout fired;
		// its result is already in the buffered channel.
		return decodeResult[T](<-pc.done)
	case <-ctx.Done():
		if _, ok := r.pending.LoadAndDelete(correlationID); ok {
			return zero, ctx.Err()
		}
		return decodeResult[T](<-pc.done)
	}
}

func decodeResult[T any](res callResult) (T, error) {
	var out T
	if res.err != nil {
		return out, res.err
	}
	if err := json.Unmarshal(res.body, &out); err != nil {
		return out, common.ErrTypeMismatch
	}
	return out, nil
}
