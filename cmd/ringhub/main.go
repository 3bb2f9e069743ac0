package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/app"
	"github.com/aman-churiwal/ringhub-gateway/internal/circuitbreaker"
	"github.com/aman-churiwal/ringhub-gateway/internal/config"
	"github.com/aman-churiwal/ringhub-gateway/internal/healthcheck"
	"github.com/aman-churiwal/ringhub-gateway/internal/logger"
	"github.com/aman-churiwal/ringhub-gateway/internal/proxy"
	"github.com/aman-churiwal/ringhub-gateway/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.json", "path to a JSON or TOML config file")
	flag.Parse()

	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("error", "").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Log.Level, cfg.Server.Environment)

	if err := cfg.ValidateServe(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Postgres.AutoMigrate(); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	hub, err := proxy.New(proxy.Config{
		Target: cfg.Upstream.Target,
		CircuitBreaker: circuitbreaker.Config{
			Name:        "hub",
			MaxFailures: cfg.Upstream.MaxFailures,
			Timeout:     cfg.Upstream.Timeout.Std(),
			Clock:       a.Clock,
		},
		Logger: log,
	})
	if err != nil {
		log.Error("failed to create proxy", "error", err)
		os.Exit(1)
	}

	deps := []healthcheck.Dependency{
		{Name: "database", Check: a.Postgres.Ping},
		{Name: "hub", Check: healthcheck.HTTPProbe(nil, strings.TrimRight(cfg.Upstream.Target, "/")+"/health")},
	}
	if a.Redis != nil {
		deps = append(deps, healthcheck.Dependency{Name: "redis", Check: a.Redis.Ping})
	}
	health := healthcheck.NewChecker(healthcheck.Config{
		Dependencies: deps,
		Clock:        a.Clock,
		Logger:       log,
	})
	health.Start()
	defer health.Stop()

	sweeper := a.RetentionSweeper()
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(cfg, server.Deps{
		Engine: a.Engine,
		Actors: a.Actors,
		Auth:   a.Auth,
		Proxy:  hub,
		Health: health,
		Clock:  a.Clock,
		Logger: log,
	})

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
