package healthcheck

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Checker probes generation provider targets so the proxy only routes
// to backends that are actually answering.
type Checker struct {
	mu             sync.RWMutex
	targets        []string
	healthStatus   map[string]*Status
	healthyTargets []string
	endpoint       string
	interval       time.Duration
	timeout        time.Duration
	maxFailures    int
	stopChan       chan struct{}
	running        bool
}

type Config struct {
	Targets     []string
	Endpoint    string        // Health check endpoint (e.g., "/health")
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Request timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

func NewChecker(cfg *Config) *Checker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/health"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	checker := &Checker{
		targets:        cfg.Targets,
		healthStatus:   make(map[string]*Status),
		healthyTargets: make([]string, 0),
		endpoint:       cfg.Endpoint,
		interval:       cfg.Interval,
		timeout:        cfg.Timeout,
		maxFailures:    cfg.MaxFailures,
		stopChan:       make(chan struct{}),
	}

	// Assume healthy until a probe says otherwise
	for _, target := range cfg.Targets {
		checker.healthStatus[target] = &Status{
			Target:    target,
			IsHealthy: true,
			LastCheck: time.Now(),
		}
	}

	return checker
}

// Start begins periodic probing.
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	log.Printf("Starting provider health checks for %d targets (interval: %v)", len(c.targets), c.interval)

	c.checkAll()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
	}
}

func (c *Checker) checkAll() {
	var wg sync.WaitGroup

	for _, target := range c.targets {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			c.checkTarget(t)
		}(target)
	}

	wg.Wait()
	c.updateHealthyTargets()
}

func (c *Checker) checkTarget(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	url := target + c.endpoint
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		c.recordFailure(target)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.recordFailure(target)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		c.recordSuccess(target)
	} else {
		c.recordFailure(target)
	}
}

func (c *Checker) recordSuccess(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[target]
	status.LastCheck = time.Now()
	status.LastSuccess = time.Now()
	status.FailureCount = 0

	if !status.IsHealthy {
		log.Printf("Provider %s is healthy again", target)
		status.IsHealthy = true
	}
}

func (c *Checker) recordFailure(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[target]
	status.LastCheck = time.Now()
	status.LastFailure = time.Now()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		log.Printf("Provider %s marked unhealthy (failures: %d)", target, status.FailureCount)
		status.IsHealthy = false
	}
}

func (c *Checker) updateHealthyTargets() {
	c.mu.Lock()
	defer c.mu.Unlock()

	healthy := make([]string, 0)
	for _, target := range c.targets {
		if c.healthStatus[target].IsHealthy {
			healthy = append(healthy, target)
		}
	}

	c.healthyTargets = healthy
}

// GetHealthyTargets returns targets currently passing probes.
func (c *Checker) GetHealthyTargets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targets := make([]string, len(c.healthyTargets))
	copy(targets, c.healthyTargets)

	return targets
}

func (c *Checker) GetAllTargets() []string {
	return c.targets
}

func (c *Checker) GetAllStatus() map[string]*Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make(map[string]*Status, len(c.healthStatus))
	for target, status := range c.healthStatus {
		copied := *status
		statuses[target] = &copied
	}

	return statuses
}

// OverallHealth summarizes the pool.
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := len(c.healthyTargets)
	total := len(c.targets)

	switch {
	case total == 0 || healthy == 0:
		return Unhealthy
	case healthy < total:
		return Degraded
	default:
		return Healthy
	}
}
