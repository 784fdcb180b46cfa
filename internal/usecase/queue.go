package usecase

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"relayd/internal/domain"
)

// Queue is the pending-message store for offline or unreachable recipients.
// It assigns ids and timestamps on enqueue; atomicity of drains is the
// backing store's contract (see domain.QueueStore).
type Queue struct {
	store  domain.QueueStore
	bus    domain.EventBus
	logger *slog.Logger
}

// NewQueue creates a Queue backed by store.
func NewQueue(store domain.QueueStore, bus domain.EventBus, logger *slog.Logger) *Queue {
	return &Queue{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// Stores order drains by id, so ids generated in the same millisecond must
// still sort in generation order. A single monotonic entropy source shared
// behind a mutex guarantees that; per-call entropy would randomize the order
// within a millisecond.
var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newULID generates a lexicographically sortable unique id. ULIDs embed the
// timestamp, so per-recipient id order matches enqueue order.
func newULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Now(), ulidEntropy).String()
}

// Enqueue appends payload to the recipient's pending sequence and returns
// the stored message. Never blocks on downstream delivery.
func (q *Queue) Enqueue(ctx context.Context, sid *domain.SessionID, payload string) (*domain.QueuedMessage, error) {
	msg := domain.QueuedMessage{
		ID:         newULID(),
		SessionID:  sid.Raw,
		Sender:     sid.Sender,
		Recipient:  sid.Recipient,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.store.Enqueue(ctx, msg); err != nil {
		return nil, domain.WrapOp("Queue.Enqueue", err)
	}

	q.logger.Debug("message queued", "agent", sid.Recipient, "message_id", msg.ID)
	q.publish(ctx, domain.EventMessageQueued, sid.Recipient, sid.Raw)
	return &msg, nil
}

// Drain atomically reads and removes every message currently pending for
// recipient and returns the payloads in enqueue order. A second immediate
// drain returns an empty slice; concurrent drains never return overlapping
// sets.
func (q *Queue) Drain(ctx context.Context, recipient string) ([]string, error) {
	msgs, err := q.store.Drain(ctx, recipient)
	if err != nil {
		return nil, domain.WrapOp("Queue.Drain", err)
	}

	payloads := make([]string, len(msgs))
	for i, m := range msgs {
		payloads[i] = m.Payload
	}

	if len(msgs) > 0 {
		q.logger.Info("queue drained", "agent", recipient, "messages", len(msgs))
	}
	q.publish(ctx, domain.EventQueueDrained, recipient, "")
	return payloads, nil
}

// Pending reports how many messages are queued for recipient.
func (q *Queue) Pending(ctx context.Context, recipient string) (int, error) {
	n, err := q.store.Pending(ctx, recipient)
	if err != nil {
		return 0, domain.WrapOp("Queue.Pending", err)
	}
	return n, nil
}

func (q *Queue) publish(ctx context.Context, t domain.EventType, agent, sessionID string) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(ctx, domain.Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Agent:     agent,
	})
}
