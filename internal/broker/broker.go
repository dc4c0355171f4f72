// Package broker defines the queue/key-value/pub-sub contract the
// coordination core is built on, with Redis and in-memory implementations.
package broker

import (
	"context"
	"time"
)

// Broker is the minimal surface the core needs from its backing store:
// FIFO lists, TTL'd key-value entries, hash fields, and pub/sub channels.
// All operations can fail; callers must not assume success.
type Broker interface {
	// Push appends values to the tail of a FIFO list.
	Push(ctx context.Context, key string, values ...string) error
	// Pop removes the head of a list without blocking. The second return
	// is false when the list is empty.
	Pop(ctx context.Context, key string) (string, bool, error)
	// PopBlocking removes the head of a list, waiting up to timeout for an
	// element to arrive. The second return is false on timeout.
	PopBlocking(ctx context.Context, key string, timeout time.Duration) (string, bool, error)
	// Len returns the current length of a list.
	Len(ctx context.Context, key string) (int64, error)

	// Get reads a plain key. The second return is false when unset or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetWithTTL writes a plain key that expires after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// HashGet reads one field of a hash. The second return is false when absent.
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	// HashSet writes one field of a hash.
	HashSet(ctx context.Context, key, field, value string) error
	// Expire sets or refreshes the TTL of a key (list, hash, or plain).
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Publish sends a payload to every current subscriber of a channel.
	// Delivery is fire-and-forget.
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe returns a channel of payloads and a cancel function that
	// releases the subscription.
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)

	// Close releases the broker's resources.
	Close() error
}
