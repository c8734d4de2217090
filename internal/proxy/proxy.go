package proxy

import (
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/craftlab/ai-gateway/internal/circuitbreaker"
	"github.com/craftlab/ai-gateway/internal/healthcheck"
	"github.com/gin-gonic/gin"
)

// Pool fronts a set of generation provider backends behind a single
// route: balances across healthy targets and trips a breaker when a
// provider starts failing.
type Pool struct {
	targets  []string
	proxies  map[string]*httputil.ReverseProxy
	breaker  *circuitbreaker.CircuitBreaker
	balancer Balancer
	health   *healthcheck.Checker
}

type Config struct {
	Targets        []string
	Strategy       string
	CircuitBreaker circuitbreaker.Config
	HealthCheck    healthcheck.Config
}

func New(targetURL string) (*Pool, error) {
	return NewPool(Config{
		Targets:  []string{targetURL},
		Strategy: "round-robin",
	})
}

func NewPool(cfg Config) (*Pool, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("at least one provider target is required")
	}

	balancer, err := NewBalancer(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	proxies := make(map[string]*httputil.ReverseProxy)
	for _, targetURL := range cfg.Targets {
		target, err := url.Parse(targetURL)
		if err != nil {
			return nil, err
		}
		proxies[targetURL] = httputil.NewSingleHostReverseProxy(target)
	}

	if cfg.HealthCheck.Targets == nil {
		cfg.HealthCheck.Targets = cfg.Targets
	}

	health := healthcheck.NewChecker(&cfg.HealthCheck)
	health.Start()

	p := &Pool{
		targets:  cfg.Targets,
		proxies:  proxies,
		breaker:  circuitbreaker.New(cfg.CircuitBreaker),
		balancer: balancer,
		health:   health,
	}

	log.Printf("Provider pool initialized with %d targets, strategy: %s", len(cfg.Targets), balancer.Name())

	return p, nil
}

// Handle forwards the request to a healthy provider.
func (p *Pool) Handle(c *gin.Context) {
	healthyTargets := p.health.GetHealthyTargets()

	if len(healthyTargets) == 0 {
		log.Println("No healthy provider targets available")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No healthy providers available",
		})
		return
	}

	selectedTarget := p.balancer.Next(healthyTargets)
	if selectedTarget == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to select provider",
		})
		return
	}

	targetProxy, exists := p.proxies[selectedTarget]
	if !exists {
		log.Printf("Proxy not found for target: %s", selectedTarget)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Internal server error",
		})
		return
	}

	// Least-connections needs in-flight counts
	if lc, ok := p.balancer.(*LeastConnections); ok {
		lc.Increment(selectedTarget)
		defer lc.Decrement(selectedTarget)
	}

	target, _ := url.Parse(selectedTarget)

	err := p.breaker.Call(func() error {
		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			statusCode:     http.StatusOK,
		}

		req := c.Request
		req.URL.Host = target.Host
		req.URL.Scheme = target.Scheme
		req.Header.Set("X-Forwarded-Host", req.Header.Get("Host"))
		req.Host = target.Host

		if clientIP := c.ClientIP(); clientIP != "" {
			req.Header.Set("X-Forwarded-For", clientIP)
		}

		c.Header("X-Backend-Server", selectedTarget)

		c.Writer = recorder
		targetProxy.ServeHTTP(c.Writer, req)

		// Count provider 5xx responses against the breaker
		if recorder.statusCode >= 500 {
			return errors.New("provider error")
		}

		return nil
	})

	if err == circuitbreaker.ErrCircuitOpen {
		log.Printf("Circuit breaker open for %s", selectedTarget)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Provider temporarily unavailable",
		})
	}
}

func (p *Pool) CircuitBreakerState() circuitbreaker.State {
	return p.breaker.State()
}

func (p *Pool) CircuitBreakerMetrics() circuitbreaker.Snapshot {
	return p.breaker.Metrics()
}

func (p *Pool) ResetCircuitBreaker() {
	p.breaker.Reset()
}

func (p *Pool) GetHealthStatus() map[string]*healthcheck.Status {
	return p.health.GetAllStatus()
}

func (p *Pool) GetHealthyTargets() []string {
	return p.health.GetHealthyTargets()
}

func (p *Pool) GetAllTargets() []string {
	return p.health.GetAllTargets()
}

func (p *Pool) OverallHealth() healthcheck.HealthStatus {
	return p.health.OverallHealth()
}

func (p *Pool) Stop() {
	if p.health != nil {
		p.health.Stop()
	}
}

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
