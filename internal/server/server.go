package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/config"
	"github.com/aman-churiwal/ringhub-gateway/internal/handler"
	"github.com/aman-churiwal/ringhub-gateway/internal/healthcheck"
	"github.com/aman-churiwal/ringhub-gateway/internal/middleware"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/proxy"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/aman-churiwal/ringhub-gateway/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the HTTP surface is built from.
type Deps struct {
	Engine *ratelimit.Engine
	Actors *service.ActorService
	Auth   *service.AuthService
	Proxy  *proxy.Proxy
	Health *healthcheck.Checker
	Clock  clock.Clock
	Logger *slog.Logger
}

type Server struct {
	router        *gin.Engine
	config        *config.Config
	deps          Deps
	logger        *slog.Logger
	adminHandler  *handler.AdminHandler
	authHandler   *handler.AuthHandler
	limitsHandler *handler.LimitsHandler
	systemHandler *handler.SystemHandler
	httpServer    *http.Server
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	s := &Server{
		router:        gin.New(),
		config:        cfg,
		deps:          deps,
		logger:        deps.Logger.With("component", "server"),
		adminHandler:  handler.NewAdminHandler(deps.Actors),
		authHandler:   handler.NewAuthHandler(deps.Auth),
		limitsHandler: handler.NewLimitsHandler(deps.Engine),
		systemHandler: handler.NewSystemHandler(deps.Proxy, deps.Health, deps.Clock, deps.Engine.Actions()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.deps.Logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.deps.Logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.systemHandler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/auth/login", s.authHandler.Login)

	s.router.GET("/v1/limits/:action", middleware.ActorIdentity(), s.limitsHandler.Get)

	// Fork is the only rate limited hub call; everything else passes through.
	s.router.POST("/rings/:slug/fork",
		middleware.ActorIdentity(),
		middleware.ForkGuard(s.deps.Engine, models.ActionFork, s.deps.Clock, s.deps.Logger),
		middleware.RecordOnSuccess(s.deps.Engine, models.ActionFork, s.deps.Logger),
		s.deps.Proxy.Handle,
	)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.deps.Auth))
	admin.Use(middleware.RequireRole(service.RoleAdmin, service.RoleModerator))
	{
		admin.GET("/status", s.systemHandler.Status)
		admin.GET("/flagged", s.adminHandler.ListFlagged)
		admin.GET("/actors/:id", s.adminHandler.GetActor)
		admin.POST("/actors/:id/cooldown", s.adminHandler.ApplyCooldown)
		admin.DELETE("/actors/:id/violations", s.adminHandler.ClearViolations)
		admin.GET("/circuit-breaker", s.systemHandler.CircuitBreakerStatus)
		admin.POST("/circuit-breaker/reset", middleware.RequireRole(service.RoleAdmin), s.systemHandler.ResetCircuitBreaker)
	}

	s.router.NoRoute(s.deps.Proxy.Handle)
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout.Std(),
		WriteTimeout: s.config.Server.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting ringhub gateway", "addr", addr, "environment", s.config.Server.Environment, "upstream", s.deps.Proxy.Target())

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
