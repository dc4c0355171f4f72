package broker

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Broker with the same semantics as the Redis
// implementation. It backs tests and single-node development mode.
type Memory struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lists  map[string][]string
	kv     map[string]string
	hashes map[string]map[string]string
	expiry map[string]time.Time
	subs   map[string]map[int]chan string
	nextID int
	closed bool
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	m := &Memory{
		lists:  make(map[string][]string),
		kv:     make(map[string]string),
		hashes: make(map[string]map[string]string),
		expiry: make(map[string]time.Time),
		subs:   make(map[string]map[int]chan string),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// purgeLocked drops a key in any namespace once its TTL has lapsed.
// Callers must hold mu.
func (m *Memory) purgeLocked(key string) {
	exp, ok := m.expiry[key]
	if !ok || time.Now().Before(exp) {
		return
	}
	delete(m.expiry, key)
	delete(m.lists, key)
	delete(m.kv, key)
	delete(m.hashes, key)
}

// Push appends values to the tail of a list and wakes blocked poppers.
func (m *Memory) Push(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(key)
	m.lists[key] = append(m.lists[key], values...)
	m.cond.Broadcast()
	return nil
}

// Pop removes the head of a list without blocking.
func (m *Memory) Pop(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popLocked(key)
}

func (m *Memory) popLocked(key string) (string, bool, error) {
	m.purgeLocked(key)
	list := m.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	head := list[0]
	if len(list) == 1 {
		delete(m.lists, key)
	} else {
		m.lists[key] = list[1:]
	}
	return head, true, nil
}

// PopBlocking removes the head of a list, waiting up to timeout.
func (m *Memory) PopBlocking(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if val, ok, err := m.popLocked(key); err != nil || ok {
			return val, ok, err
		}
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		// Wake up at the deadline even if nothing is pushed.
		timer := time.AfterFunc(remaining, m.cond.Broadcast)
		m.cond.Wait()
		timer.Stop()
	}
}

// Len returns the length of a list.
func (m *Memory) Len(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(key)
	return int64(len(m.lists[key])), nil
}

// Get reads a plain key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(key)
	val, ok := m.kv[key]
	return val, ok, nil
}

// SetWithTTL writes a plain key with an expiry.
func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

// HashGet reads one hash field.
func (m *Memory) HashGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(key)
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	val, ok := h[field]
	return val, ok, nil
}

// HashSet writes one hash field.
func (m *Memory) HashSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked(key)
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

// Expire sets or refreshes a key's TTL.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

// Publish delivers a payload to current subscribers. Subscribers that cannot
// keep up are skipped rather than blocking the publisher.
func (m *Memory) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener on a channel.
func (m *Memory) Subscribe(_ context.Context, channel string) (<-chan string, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan string, 64)
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[int]chan string)
	}
	m.subs[channel][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[channel][id]; ok {
			delete(m.subs[channel], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// Close drops all state and wakes any blocked poppers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for channel, subs := range m.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(m.subs, channel)
	}
	m.lists = make(map[string][]string)
	m.cond.Broadcast()
	return nil
}
