package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/craftlab/ai-gateway/internal/admission"
	"github.com/craftlab/ai-gateway/internal/config"
	"github.com/craftlab/ai-gateway/internal/handler"
	"github.com/craftlab/ai-gateway/internal/metrics"
	"github.com/craftlab/ai-gateway/internal/middleware"
	"github.com/craftlab/ai-gateway/internal/proxy"
	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/craftlab/ai-gateway/internal/ratelimit"
	"github.com/craftlab/ai-gateway/internal/repository"
	"github.com/craftlab/ai-gateway/internal/service"
	"github.com/craftlab/ai-gateway/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

type Server struct {
	router          *gin.Engine
	config          *config.Config
	policy          *config.Policy
	redis           *storage.RedisClient
	postgres        *storage.Postgres
	pools           map[string]*proxy.Pool
	limiter         ratelimit.Limiter
	controller      *admission.Controller
	admissionLogger *middleware.AdmissionLogger

	apiKeyService    *service.APIKeyService
	authService      *service.AuthService
	planService      *service.PlanService
	analyticsService *service.AnalyticsService

	apiKeyHandler    *handler.APIKeyHandler
	authHandler      *handler.AuthHandler
	orgHandler       *handler.OrganizationHandler
	analyticsHandler *handler.AnalyticsHandler
	systemHandler    *handler.SystemHandler

	janitor    *cron.Cron
	httpServer *http.Server
}

func New(cfg *config.Config, policy *config.Policy, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Repositories and services
	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	orgRepo := repository.NewOrganizationRepository(postgres)
	userRepo := repository.NewUserRepository(postgres)
	logRepo := repository.NewAdmissionLogRepository(postgres)

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, redis)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)
	planService := service.NewPlanService(orgRepo, redis)
	analyticsService := service.NewAnalyticsService(logRepo)

	// Admission pipeline: limiter and usage store live in memory by
	// default, or in Redis when the gateway runs more than one replica.
	limiter, usageStore := buildStores(cfg, redis)
	gate := quota.NewGate(policy.Plans, planService, usageStore)
	controller := admission.New(policy, limiter, gate, metrics.New())

	s := &Server{
		router:           router,
		config:           cfg,
		policy:           policy,
		redis:            redis,
		postgres:         postgres,
		pools:            make(map[string]*proxy.Pool),
		limiter:          limiter,
		controller:       controller,
		admissionLogger:  middleware.NewAdmissionLogger(logRepo, 1000),
		apiKeyService:    apiKeyService,
		authService:      authService,
		planService:      planService,
		analyticsService: analyticsService,
	}

	s.apiKeyHandler = handler.NewAPIKeyHandler(apiKeyService)
	s.authHandler = handler.NewAuthHandler(authService)
	s.orgHandler = handler.NewOrganizationHandler(orgRepo, planService)
	s.analyticsHandler = handler.NewAnalyticsHandler(analyticsService)

	s.initializePools()
	s.systemHandler = handler.NewSystemHandler(s.pools)

	s.setupMiddleware()
	s.setupRoutes()
	s.startJanitor()

	return s
}

func buildStores(cfg *config.Config, redis *storage.RedisClient) (ratelimit.Limiter, quota.UsageStore) {
	if cfg.Admission.Store == "redis" && redis != nil {
		log.Println("Admission state: redis")
		return ratelimit.NewRedisLimiter(redis), quota.NewRedisUsage(redis)
	}

	log.Println("Admission state: in-memory")
	return ratelimit.NewMemoryLimiter(), quota.NewMemoryUsage()
}

func (s *Server) initializePools() {
	for _, svc := range s.config.Services {
		if len(svc.Targets) == 0 {
			log.Printf("Warning: Service %s has no targets configured", svc.Path)
			continue
		}

		p, err := proxy.NewPool(proxy.Config{
			Targets:  svc.Targets,
			Strategy: svc.LoadBalancer,
		})
		if err != nil {
			log.Printf("Failed to create provider pool for %s: %v", svc.Path, err)
			continue
		}

		s.pools[svc.Path] = p
		log.Printf("Initialized provider pool for %s -> %v", svc.Path, svc.Targets)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.APIKeyValidator(s.apiKeyService))
	s.router.Use(middleware.OptionalAuth(s.authService))
	s.router.Use(s.admissionLogger.Middleware())
	s.router.Use(middleware.Admission(s.controller))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.GET("/status", s.adminStatus)

		admin.POST("/keys", s.apiKeyHandler.Create)
		admin.GET("/keys", s.apiKeyHandler.List)
		admin.GET("/keys/:id", s.apiKeyHandler.Get)
		admin.PATCH("/keys/:id", s.apiKeyHandler.Update)
		admin.DELETE("/keys/:id", s.apiKeyHandler.Delete)

		admin.POST("/orgs", s.orgHandler.Create)
		admin.GET("/orgs", s.orgHandler.List)
		admin.GET("/orgs/:id", s.orgHandler.Get)
		admin.PATCH("/orgs/:id/plan", s.orgHandler.UpdatePlanTier)

		admin.GET("/analytics", s.analyticsHandler.GetSummary)
		admin.GET("/analytics/timeseries", s.analyticsHandler.GetTimeSeries)
		admin.GET("/analytics/orgs/:id", s.analyticsHandler.GetOrganizationStats)
		admin.GET("/logs", s.analyticsHandler.GetLogs)

		admin.GET("/breakers", s.systemHandler.CircuitBreakerStatus)
		admin.POST("/breakers/reset/*service", s.systemHandler.ResetCircuitBreaker)
		admin.GET("/providers", s.systemHandler.ProviderHealth)
	}

	s.setupProxyRoutes()
}

func (s *Server) setupProxyRoutes() {
	for path, pool := range s.pools {
		proxyPath := path
		p := pool

		s.router.Any(proxyPath+"/*proxyPath", func(c *gin.Context) {
			p.Handle(c)
		})

		s.router.Any(proxyPath, func(c *gin.Context) {
			p.Handle(c)
		})

		log.Printf("Registered proxy route: %s", proxyPath)
	}
}

// startJanitor schedules the limiter eviction sweep and the nightly
// admission log cleanup.
func (s *Server) startJanitor() {
	s.janitor = cron.New()

	schedule := s.config.Admission.SweepSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	_, err := s.janitor.AddFunc(schedule, func() {
		removed := s.limiter.Sweep(context.Background(), time.Now())
		if removed > 0 {
			log.Printf("Limiter sweep evicted %d idle keys", removed)
		}
	})
	if err != nil {
		log.Printf("Failed to schedule limiter sweep: %v", err)
	}

	_, err = s.janitor.AddFunc("@daily", func() {
		deleted, err := s.analyticsService.CleanupOldLogs(context.Background(), s.config.Admission.LogRetentionDays)
		if err != nil {
			log.Printf("Admission log cleanup failed: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("Admission log cleanup deleted %d rows", deleted)
		}
	})
	if err != nil {
		log.Printf("Failed to schedule log cleanup: %v", err)
	}

	s.janitor.Start()
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "ai-gateway",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	ctx := c.Request.Context()
	keys, _ := s.apiKeyService.List(ctx)
	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"services":  len(s.config.Services),
		"api_keys":  len(keys),
		"uptime":    time.Since(startTime).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting AI Gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if s.janitor != nil {
		s.janitor.Stop()
	}

	for _, pool := range s.pools {
		pool.Stop()
	}

	// Flush buffered admission logs before closing
	s.admissionLogger.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
