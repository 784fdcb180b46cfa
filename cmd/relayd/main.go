package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relayd/internal/adapter/egress"
	"relayd/internal/adapter/gateway"
	"relayd/internal/adapter/store"
	"relayd/internal/domain"
	"relayd/internal/infra/config"
	"relayd/internal/infra/logger"
	"relayd/internal/infra/middleware"
	"relayd/internal/infra/tracer"
	"relayd/internal/usecase"
	"relayd/internal/usecase/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	}()

	var registryStore domain.RegistryStore
	var queueStore domain.QueueStore
	switch cfg.Store.Backend {
	case "memory":
		mem := store.NewMemoryStore()
		registryStore, queueStore = mem, mem
		log.Info("using in-memory store")
	default:
		db, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		registryStore, queueStore = db, db
		log.Info("using sqlite store", "path", cfg.Store.Path)
	}

	bus := eventbus.New(log)
	defer bus.Close()

	var pusher domain.Pusher = egress.NewHTTPPusher(cfg.Relay.PushTimeout, log)
	if cfg.Relay.Breaker.Enabled {
		pusher = egress.NewBreakerPusher(pusher, egress.BreakerConfig{
			MaxFailures: cfg.Relay.Breaker.MaxFailures,
			Timeout:     cfg.Relay.Breaker.Timeout,
			Interval:    cfg.Relay.Breaker.Interval,
		}, log)
	}

	registry := usecase.NewRegistry(registryStore, bus, log)
	queue := usecase.NewQueue(queueStore, bus, log)
	dispatcher := usecase.NewDispatcher(registry, queue, pusher, usecase.Mode(cfg.Relay.Mode), bus, log)

	var auth gateway.Authenticator
	if len(cfg.Auth.Tokens) > 0 {
		entries := make([]gateway.TokenEntry, len(cfg.Auth.Tokens))
		for i, t := range cfg.Auth.Tokens {
			entries[i] = gateway.TokenEntry{Token: t.Token, Name: t.Name}
		}
		auth = gateway.NewStaticTokenAuth(entries)
	} else {
		log.Warn("no auth tokens configured, register endpoint is open")
	}

	var rateLimit *middleware.RateLimitConfig
	if cfg.Server.RateLimit.Enabled {
		rateLimit = &middleware.RateLimitConfig{
			RequestsPerMin: cfg.Server.RateLimit.RequestsPerMin,
			BurstSize:      cfg.Server.RateLimit.BurstSize,
			TrustedProxies: cfg.Server.RateLimit.TrustedProxies,
		}
	}

	srv := gateway.NewServer(gateway.HandlerDeps{
		Registry:   registry,
		Queue:      queue,
		Dispatcher: dispatcher,
	}, auth, bus, cfg.Server.Addr, rateLimit, log)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
