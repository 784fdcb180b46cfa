package egress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"relayd/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure
	// counts. If 0, failures never reset until the circuit opens.
	Interval time.Duration
}

// BreakerPusher wraps a domain.Pusher with circuit breaker protection. When
// pushes fail repeatedly, the circuit opens and subsequent attempts fail
// fast without a network call. Each relay call still makes at most one
// delivery attempt; the breaker only short-circuits attempts that would
// hammer an endpoint already known to be down.
type BreakerPusher struct {
	inner   domain.Pusher
	breaker *gobreaker.CircuitBreaker[*domain.PushResult]
	logger  *slog.Logger
}

// NewBreakerPusher wraps inner with a circuit breaker.
// Zero-valued cfg fields fall back to defaults.
func NewBreakerPusher(inner domain.Pusher, cfg BreakerConfig, logger *slog.Logger) *BreakerPusher {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.PushResult](gobreaker.Settings{
		Name:        "egress",
		MaxRequests: 1, // allow 1 trial request in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerPusher{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// Push implements domain.Pusher. Attempts are routed through the circuit
// breaker; an open circuit reports as a delivery failure.
func (p *BreakerPusher) Push(ctx context.Context, url string, env domain.PushEnvelope) (*domain.PushResult, error) {
	result, err := p.breaker.Execute(func() (*domain.PushResult, error) {
		return p.inner.Push(ctx, url, env)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDomainError("egress.Push", domain.ErrDeliveryFailed,
				fmt.Sprintf("%s: circuit open", url))
		}
		return nil, err
	}
	return result, nil
}

// State returns the current circuit breaker state for monitoring.
func (p *BreakerPusher) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (p *BreakerPusher) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}

// Compile-time interface check.
var _ domain.Pusher = (*BreakerPusher)(nil)
