package domain

import (
	"context"
	"time"
)

// QueuedMessage is a single undelivered message held for a recipient. It is
// owned exclusively by the pending queue: created on enqueue, destroyed on
// drain. A message returned by a drain is removed in the same operation and
// is never returned twice.
type QueuedMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Payload    string    `json:"message"`
	EnqueuedAt time.Time `json:"timestamp"`
}

// QueueStore persists pending messages per recipient in enqueue order.
type QueueStore interface {
	// Enqueue appends msg to the recipient's sequence. Purely a store
	// operation; it never blocks on downstream delivery.
	Enqueue(ctx context.Context, msg QueuedMessage) error
	// Drain atomically reads and removes all messages currently queued for
	// recipient, in enqueue order. Concurrent drains for the same recipient
	// must partition the message set: every message goes to exactly one
	// caller. Messages enqueued mid-drain may land in this drain or the
	// next, never partially.
	Drain(ctx context.Context, recipient string) ([]QueuedMessage, error)
	// Pending reports how many messages are queued for recipient.
	Pending(ctx context.Context, recipient string) (int, error)
}
