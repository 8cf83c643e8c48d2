package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker fails fast with ErrProviderUnavailable after consecutive provider
// failures, until the cool-down elapses. It never retries.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[CheckoutSession]
}

// BreakerSettings tunes when the breaker opens and how long it stays open.
type BreakerSettings struct {
	MaxFailures uint32
	CoolDown    time.Duration
}

func NewBreaker(next Provider, s BreakerSettings, log *zap.Logger) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.CoolDown == 0 {
		s.CoolDown = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[CheckoutSession](gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     s.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// a cancelled request or an unknown session id says nothing about the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnknownSession)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) CreateCheckoutSession(ctx context.Context, req SessionRequest) (CheckoutSession, error) {
	return b.execute(func() (CheckoutSession, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
}

func (b *Breaker) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	return b.execute(func() (CheckoutSession, error) {
		return b.next.GetCheckoutSession(ctx, id)
	})
}

func (b *Breaker) execute(call func() (CheckoutSession, error)) (CheckoutSession, error) {
	s, err := b.cb.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return s, err
}

// State reports the breaker state, for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
