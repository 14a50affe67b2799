package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/buffermesh/buffermesh/internal/logging"
)

// redisFrame carries the routing key alongside the payload. Redis pub/sub
// has no per-message key of its own.
type redisFrame struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// RedisTransport is a Transport over Redis pub/sub channels. One channel
// per topic; every subscriber of a topic receives every message.
type RedisTransport struct {
	client *redis.Client
	logger logging.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

func NewRedisTransport(addr string, logger logging.Logger) *RedisTransport {
	return &RedisTransport{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger.With("module", "bus_redis"),
	}
}

// Ping verifies broker connectivity.
func (t *RedisTransport) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic, key string, payload []byte) error {
	frame, err := json.Marshal(redisFrame{Key: key, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := t.client.Publish(ctx, topic, frame).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(topic string, h Handler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}

	ps := t.client.Subscribe(context.Background(), topic)
	if _, err := ps.Receive(context.Background()); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	t.subs = append(t.subs, ps)

	go func() {
		for msg := range ps.Channel() {
			t.dispatch(topic, h, msg.Payload)
		}
	}()

	return func() { _ = ps.Close() }, nil
}

// dispatch decodes one delivery and hands it to the handler in its own
// goroutine, so a slow handler cannot stall the channel drain. Same
// delivery semantics as the in-memory transport.
func (t *RedisTransport) dispatch(topic string, h Handler, raw string) {
	var frame redisFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		t.logger.Warn(context.Background(), "dropping undecodable frame", "topic", topic, "error", err)
		return
	}
	go h(context.Background(), frame.Key, frame.Payload)
}

// Close tears down all subscriptions and the client connection.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return t.client.Close()
}
