package usecase

import (
	"context"
	"log/slog"
	"time"

	"relayd/internal/domain"
	"relayd/internal/infra/tracer"
)

// Mode selects the delivery policy for a deployment. It is fixed at startup;
// mixing modes per call is not supported.
type Mode string

const (
	// ModeDurable enqueues every relayed message for pull-based retrieval,
	// then attempts one best-effort push. Push failure never fails the call.
	ModeDurable Mode = "durable"
	// ModeSynchronous forwards immediately and returns the remote reply.
	// Nothing is queued; push failure fails the call.
	ModeSynchronous Mode = "synchronous"
)

// Outcome is the result of a relay call. Durable mode sets Status
// ("stored" or "stored_and_pushed"); synchronous mode sets Reply.
type Outcome struct {
	Status string `json:"status,omitempty"`
	Reply  string `json:"reply,omitempty"`
}

// Dispatcher resolves a session id to a registered recipient and delivers
// the message according to the configured Mode.
type Dispatcher struct {
	registry *Registry
	queue    *Queue
	pusher   domain.Pusher
	mode     Mode
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. mode defaults to ModeDurable when
// empty.
func NewDispatcher(registry *Registry, queue *Queue, pusher domain.Pusher, mode Mode, bus domain.EventBus, logger *slog.Logger) *Dispatcher {
	if mode == "" {
		mode = ModeDurable
	}
	return &Dispatcher{
		registry: registry,
		queue:    queue,
		pusher:   pusher,
		mode:     mode,
		bus:      bus,
		logger:   logger,
	}
}

// Mode returns the configured delivery mode.
func (d *Dispatcher) Mode() Mode { return d.mode }

// Relay validates sessionID, resolves the recipient's callback address and
// delivers message per the configured mode. Validation errors are raised
// before any side effect: a malformed session id or unknown recipient never
// produces a queue entry.
func (d *Dispatcher) Relay(ctx context.Context, sessionID, message string) (*Outcome, error) {
	ctx, span := tracer.StartSpan(ctx, "dispatcher.relay",
		tracer.WithAttributes(tracer.StringAttr("relay.session_id", sessionID)),
	)
	defer span.End()

	sid, err := domain.ParseSessionID(sessionID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	entry, err := d.registry.Lookup(ctx, sid.Recipient)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	env := domain.PushEnvelope{SessionID: sid.Raw, Message: message}

	var outcome *Outcome
	switch d.mode {
	case ModeSynchronous:
		outcome, err = d.relaySync(ctx, sid, entry.CallbackURL, env)
	default:
		outcome, err = d.relayDurable(ctx, sid, entry.CallbackURL, env, message)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return outcome, nil
}

// relaySync performs a single forward and propagates its result. The remote
// reply payload becomes the outcome; timeouts and non-success statuses
// surface as ErrDeliveryTimeout / ErrDeliveryFailed.
func (d *Dispatcher) relaySync(ctx context.Context, sid *domain.SessionID, url string, env domain.PushEnvelope) (*Outcome, error) {
	res, err := d.pusher.Push(ctx, url, env)
	if err != nil {
		d.publishPush(ctx, domain.EventPushFailed, sid)
		return nil, err
	}
	d.publishPush(ctx, domain.EventMessagePushed, sid)
	return &Outcome{Reply: res.Reply}, nil
}

// relayDurable enqueues unconditionally, then attempts one best-effort push.
// The enqueue must commit before the push starts, and the push context is
// detached from the caller, so an abandoned relay call can never lose a
// message. Push failure is observed, never escalated: durability is the
// delivery contract in this mode.
func (d *Dispatcher) relayDurable(ctx context.Context, sid *domain.SessionID, url string, env domain.PushEnvelope, message string) (*Outcome, error) {
	if _, err := d.queue.Enqueue(ctx, sid, message); err != nil {
		return nil, err
	}

	status := "stored"
	pushCtx := context.WithoutCancel(ctx)
	if _, err := d.pusher.Push(pushCtx, url, env); err != nil {
		d.logger.Warn("best-effort push failed",
			"agent", sid.Recipient,
			"url", url,
			"error", err,
		)
		d.publishPush(ctx, domain.EventPushFailed, sid)
	} else {
		status = "stored_and_pushed"
		d.publishPush(ctx, domain.EventMessagePushed, sid)
	}
	return &Outcome{Status: status}, nil
}

func (d *Dispatcher) publishPush(ctx context.Context, t domain.EventType, sid *domain.SessionID) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, domain.Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		SessionID: sid.Raw,
		Agent:     sid.Recipient,
	})
}
