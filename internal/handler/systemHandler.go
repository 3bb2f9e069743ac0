package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/circuitbreaker"
	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/healthcheck"
	"github.com/gin-gonic/gin"
)

// BreakerControl exposes the hub proxy's circuit breaker.
type BreakerControl interface {
	Target() string
	CircuitBreakerMetrics() circuitbreaker.Metrics
	ResetCircuitBreaker()
}

// HealthReporter summarises dependency health.
type HealthReporter interface {
	OverallHealth() healthcheck.HealthStatus
	GetAllStatus() []healthcheck.Status
}

// Handles system-related endpoints
type SystemHandler struct {
	breaker   BreakerControl
	health    HealthReporter
	clock     clock.Clock
	startTime time.Time
	actions   []string
}

func NewSystemHandler(breaker BreakerControl, health HealthReporter, clk clock.Clock, actions []string) *SystemHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &SystemHandler{
		breaker:   breaker,
		health:    health,
		clock:     clk,
		startTime: clk.Now(),
		actions:   actions,
	}
}

// Health answers 200 unless every dependency is down. Degraded still serves
// traffic because the limiter fails open.
func (h *SystemHandler) Health(c *gin.Context) {
	overall := h.health.OverallHealth()

	statusCode := http.StatusOK
	if overall == healthcheck.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overall.String(),
		"service":   "ringhub-gateway",
		"timestamp": h.clock.Now().Unix(),
		"checks":    h.health.GetAllStatus(),
	})
}

func (h *SystemHandler) Status(c *gin.Context) {
	now := h.clock.Now()
	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"upstream":  h.breaker.Target(),
		"actions":   h.actions,
		"health":    h.health.OverallHealth().String(),
		"uptime":    now.Sub(h.startTime).Seconds(),
		"timestamp": now.Unix(),
	})
}

// Returns the status of the hub circuit breaker
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	metrics := h.breaker.CircuitBreakerMetrics()

	c.JSON(http.StatusOK, gin.H{
		"target":            h.breaker.Target(),
		"state":             metrics.State.String(),
		"failure_count":     metrics.FailureCount,
		"success_count":     metrics.SuccessCount,
		"last_failure_time": metrics.LastFailureTime,
		"last_state_change": metrics.LastStateChange,
	})
}

// Manually resets the circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	h.breaker.ResetCircuitBreaker()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"target":  h.breaker.Target(),
	})
}
