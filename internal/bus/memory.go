package bus

import (
	"context"
	"sync"
)

// MemoryTransport is an in-process Transport. It backs the single-binary
// deployment mode and the test suite; delivery is asynchronous, matching
// the broker-backed transport's semantics.
type MemoryTransport struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[string]map[int]Handler)}
}

func (t *MemoryTransport) Publish(ctx context.Context, topic, key string, payload []byte) error {
	t.mu.RLock()
	handlers := make([]Handler, 0, len(t.subs[topic]))
	for _, h := range t.subs[topic] {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)

	for _, h := range handlers {
		go h(context.WithoutCancel(ctx), key, buf)
	}
	return nil
}

func (t *MemoryTransport) Subscribe(topic string, h Handler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	if t.subs[topic] == nil {
		t.subs[topic] = make(map[int]Handler)
	}
	t.subs[topic][id] = h

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs[topic], id)
	}, nil
}
