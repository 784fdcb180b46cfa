package domain

import (
	"context"
)

// PushEnvelope is the JSON body POSTed to an agent's callback address. It
// mirrors the relay request so the receiving agent sees the same session id
// the sender used.
type PushEnvelope struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// PushResult reports the remote side of a completed push.
type PushResult struct {
	StatusCode int
	// Reply is the "reply" field of the remote JSON response body, if the
	// remote sent one. Empty otherwise.
	Reply string
}

// Pusher performs a single POST-with-JSON delivery attempt to a callback
// address with a bounded timeout. Implementations must surface timeouts,
// connection failures, and non-2xx statuses distinctly (ErrDeliveryTimeout
// vs ErrDeliveryFailed) and must not retry.
type Pusher interface {
	Push(ctx context.Context, url string, env PushEnvelope) (*PushResult, error)
}
