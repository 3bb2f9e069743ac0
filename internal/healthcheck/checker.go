package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Dependency is a named probe, e.g. "redis" or "hub".
type Dependency struct {
	Name  string
	Check CheckFunc
}

// Performs periodic health checks on the gateway's dependencies
type Checker struct {
	mu           sync.RWMutex
	deps         []Dependency
	healthStatus map[string]*Status
	interval     time.Duration
	timeout      time.Duration
	maxFailures  int
	clock        clock.Clock
	logger       *slog.Logger
	stopChan     chan struct{}
	running      bool
}

// Holds health checker configuration
type Config struct {
	Dependencies []Dependency
	Interval     time.Duration // How often to check (default: 10s)
	Timeout      time.Duration // Per-probe timeout (default: 5s)
	MaxFailures  int           // Failures before marking unhealthy (default: 3)
	Clock        clock.Clock
	Logger       *slog.Logger
}

func NewChecker(cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	checker := &Checker{
		deps:         cfg.Dependencies,
		healthStatus: make(map[string]*Status, len(cfg.Dependencies)),
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		maxFailures:  cfg.MaxFailures,
		clock:        cfg.Clock,
		logger:       cfg.Logger.With("component", "healthcheck"),
		stopChan:     make(chan struct{}),
	}

	// Assume healthy until proven otherwise
	now := cfg.Clock.Now()
	for _, dep := range cfg.Dependencies {
		checker.healthStatus[dep.Name] = &Status{
			Name:      dep.Name,
			IsHealthy: true,
			LastCheck: now,
		}
	}

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info("starting health checks", "dependencies", len(c.deps), "interval", c.interval)

	// Run initial check immediately
	c.CheckAll(context.Background())

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckAll(context.Background())
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		c.logger.Info("health checker stopped")
	}
}

// CheckAll probes every dependency concurrently and waits for all of them.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, dep := range c.deps {
		wg.Add(1)
		go func(d Dependency) {
			defer wg.Done()
			c.checkDependency(ctx, d)
		}(dep)
	}

	wg.Wait()
}

func (c *Checker) checkDependency(ctx context.Context, dep Dependency) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := dep.Check(ctx); err != nil {
		c.recordFailure(dep.Name, err)
		return
	}
	c.recordSuccess(dep.Name)
}

// Records a successful health check
func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	status := c.healthStatus[name]
	status.LastCheck = now
	status.LastSuccess = now
	status.FailureCount = 0
	status.LastError = ""

	if !status.IsHealthy {
		c.logger.Info("dependency is healthy again", "dependency", name)
		status.IsHealthy = true
	}
}

// Records a failed health check
func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	status := c.healthStatus[name]
	status.LastCheck = now
	status.LastFailure = now
	status.LastError = err.Error()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.logger.Warn("dependency is unhealthy", "dependency", name, "failures", status.FailureCount, "error", err)
		status.IsHealthy = false
	}
}

// Returns the health status of a single dependency
func (c *Checker) GetStatus(name string) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if status, exists := c.healthStatus[name]; exists {
		statusCopy := *status
		return &statusCopy
	}

	return nil
}

// Returns copies of every dependency's status, ordered by name
func (c *Checker) GetAllStatus() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make([]Status, 0, len(c.healthStatus))
	for _, status := range c.healthStatus {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	return statuses
}

// Returns the overall health status
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthyCount := 0
	for _, status := range c.healthStatus {
		if status.IsHealthy {
			healthyCount++
		}
	}

	if len(c.healthStatus) > 0 && healthyCount == 0 {
		return Unhealthy
	}
	if healthyCount < len(c.healthStatus) {
		return Degraded
	}

	return Healthy
}

// HTTPProbe builds a CheckFunc that expects a 2xx or 3xx from url.
func HTTPProbe(client *http.Client, url string) CheckFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return nil
	}
}
