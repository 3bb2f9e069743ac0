package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State int

const (
	// StateClosed - normal operation, requests pass through
	StateClosed State = iota

	// StateOpen - circuit is open, requests fail immediately
	StateOpen

	// StateHalfOpen - testing if the upstream recovered
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "ringhub_circuit_breaker_state",
	Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
}, []string{"breaker"})

var rejectedCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ringhub_circuit_breaker_rejected_total",
	Help: "Calls rejected while the circuit was open",
}, []string{"breaker"})
