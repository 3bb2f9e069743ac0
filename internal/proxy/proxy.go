package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aman-churiwal/ringhub-gateway/internal/circuitbreaker"
	"github.com/gin-gonic/gin"
)

var errUpstream = errors.New("upstream error")

// Proxy forwards requests to the ring hub behind a circuit breaker.
type Proxy struct {
	target         *url.URL
	reverseProxy   *httputil.ReverseProxy
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *slog.Logger
}

type Config struct {
	Target         string
	CircuitBreaker circuitbreaker.Config
	Logger         *slog.Logger
}

func New(cfg Config) (*Proxy, error) {
	if cfg.Target == "" {
		return nil, errors.New("proxy target is required")
	}
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy target: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("proxy target %q must be an absolute URL", cfg.Target)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "proxy", "target", target.String())

	if cfg.CircuitBreaker.Logger == nil {
		cfg.CircuitBreaker.Logger = logger
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		originalHost := req.Host
		director(req)
		req.Header.Set("X-Forwarded-Host", originalHost)
		req.Host = target.Host
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"Upstream unavailable"}`))
	}

	p := &Proxy{
		target:         target,
		reverseProxy:   rp,
		circuitBreaker: circuitbreaker.New(cfg.CircuitBreaker),
		logger:         logger,
	}

	logger.Info("proxy initialized")

	return p, nil
}

// Forwards the request to the hub
func (p *Proxy) Handle(c *gin.Context) {
	err := p.circuitBreaker.Call(func() error {
		// Capture the upstream status
		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			statusCode:     http.StatusOK,
		}
		c.Writer = recorder

		p.reverseProxy.ServeHTTP(c.Writer, c.Request)

		if recorder.statusCode >= 500 {
			return errUpstream
		}

		return nil
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		p.logger.Warn("circuit breaker open, rejecting request", "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
	}
	// Upstream errors have already been written by the reverse proxy
}

// Returns the hub URL this proxy forwards to
func (p *Proxy) Target() string {
	return p.target.String()
}

// Returns the current circuit breaker state
func (p *Proxy) CircuitBreakerState() circuitbreaker.State {
	return p.circuitBreaker.State()
}

// Returns circuit breaker metrics
func (p *Proxy) CircuitBreakerMetrics() circuitbreaker.Metrics {
	return p.circuitBreaker.Metrics()
}

// Manually resets the circuit breaker
func (p *Proxy) ResetCircuitBreaker() {
	p.circuitBreaker.Reset()
}

// Captures the response status code
type responseRecorder struct {
	gin.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	return r.ResponseWriter.Write(data)
}
