package metrics

import (
	"time"
)

// Outcome labels for per-item sync results
const (
	OutcomeAdded     = "added"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
)

// Collector defines the interface for collecting storefront metrics.
// Implementations can export metrics to various backends.
type Collector interface {
	// Catalog sync
	RecordSyncRun(success bool, duration time.Duration)
	RecordSyncItem(outcome string)

	// Checkout
	RecordCheckout(result string, duration time.Duration)
	RecordStatusRefresh(status string)

	// Gateways
	RecordGatewayCall(gateway, op string, success bool, duration time.Duration)
	RecordCircuitState(gateway string, state CircuitState)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the gateway has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordSyncRun(success bool, duration time.Duration)                        {}
func (NoOpCollector) RecordSyncItem(outcome string)                                             {}
func (NoOpCollector) RecordCheckout(result string, duration time.Duration)                      {}
func (NoOpCollector) RecordStatusRefresh(status string)                                         {}
func (NoOpCollector) RecordGatewayCall(gateway, op string, success bool, duration time.Duration) {}
func (NoOpCollector) RecordCircuitState(gateway string, state CircuitState)                     {}
