package service

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"voucher-storefront/internal/metrics"
	"voucher-storefront/pkg/logger"
)

// BreakerSettings configures the circuit breaker in front of a gateway
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings trips after 5 consecutive transport failures
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// gatewayBreaker guards one remote gateway. Only transport failures
// count against it; business rejections pass through untouched.
type gatewayBreaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	metrics metrics.Collector
}

func newGatewayBreaker(name string, s BreakerSettings, m metrics.Collector, log *logger.Logger) *gatewayBreaker {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	b := &gatewayBreaker{name: name, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransport)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Gateway circuit breaker state changed",
				"gateway", name,
				"from", from.String(),
				"to", to.String(),
			)
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			b.metrics.RecordCircuitState(name, state)
		},
	})
	return b
}

// do runs fn through the breaker and records the call
func (b *gatewayBreaker) do(op string, fn func() error) error {
	start := time.Now()
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = transportError(b.name+" "+op, err)
	}
	b.metrics.RecordGatewayCall(b.name, op, err == nil, time.Since(start))
	return err
}
