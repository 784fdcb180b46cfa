package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"relayd/internal/domain"
)

// Default push timeout when none is configured. A single unreachable
// recipient must not stall the dispatcher.
const defaultPushTimeout = 10 * time.Second

const maxReplyBody = 1 << 20 // 1 MiB

// HTTPPusher implements domain.Pusher with a single POST-with-JSON attempt
// per call. Timeouts, connection failures, and non-2xx statuses surface as
// distinct errors; nothing is retried.
type HTTPPusher struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPPusher creates a pusher whose delivery attempts are bounded by
// timeout (defaultPushTimeout when zero).
func NewHTTPPusher(timeout time.Duration, logger *slog.Logger) *HTTPPusher {
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	return &HTTPPusher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newPooledTransport(timeout),
		},
		logger: logger,
	}
}

// newPooledTransport sizes the connection pool for many distinct callback
// hosts with modest per-host concurrency.
func newPooledTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// Push implements domain.Pusher.
func (p *HTTPPusher) Push(ctx context.Context, url string, env domain.PushEnvelope) (*domain.PushResult, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, domain.WrapOp("egress.Push", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewDomainError("egress.Push", domain.ErrDeliveryFailed, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.NewDomainError("egress.Push", domain.ErrDeliveryTimeout, url)
		}
		return nil, domain.NewDomainError("egress.Push", domain.ErrDeliveryFailed, err.Error())
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("%s: status %d: %s", url, resp.StatusCode, truncate(data, 256))
		return nil, domain.NewDomainError("egress.Push", domain.ErrDeliveryFailed, detail)
	}

	result := &domain.PushResult{StatusCode: resp.StatusCode}
	var replyBody struct {
		Reply string `json:"reply"`
	}
	// Reply bodies are optional; a non-JSON 2xx body is still a success.
	if err := json.Unmarshal(data, &replyBody); err == nil {
		result.Reply = replyBody.Reply
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.Pusher = (*HTTPPusher)(nil)
