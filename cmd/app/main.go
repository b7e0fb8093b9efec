package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"salon-billing/internal/application"
	"salon-billing/internal/config"
	"salon-billing/internal/infra/api"
	"salon-billing/internal/infra/logging"
	"salon-billing/internal/infra/metrics"
	"salon-billing/internal/infra/sched"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory store and provider when unconfigured)")
	flag.Parse()

	if err := run(*cfgPath, *devMode); err != nil {
		fmt.Fprintf(os.Stderr, "salon-billing: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, dev bool) error {
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := application.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := api.Deps{
		Parser:        svc.Parser,
		Dispatcher:    svc.Dispatcher,
		Events:        svc.Ledger,
		Discounts:     svc.Discounts,
		Subscriptions: svc.Subscriptions,
		Ready:         svc.Ready,
	}
	if cfg.Admin.APIKey != "" || cfg.Admin.JWTSecret != "" {
		deps.Auth = api.NewAuthManager(cfg.Admin)
		if svc.RateLimiter != nil && cfg.Admin.RateLimit > 0 {
			deps.RateLimit = &api.RateLimit{Limiter: svc.RateLimiter, Limit: cfg.Admin.RateLimit, Window: cfg.Admin.RateWindow}
		}
	} else {
		logger.Warn().Msg("admin credentials not configured; admin API disabled")
	}
	server := api.NewServer(cfg.HTTP, deps, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info().Msg("shutdown requested")
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Scheduler.ReferralEnabled {
		w := sched.NewReferralWorker(cfg.Scheduler.ReferralInterval, svc.Discounts, logger)
		g.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
	}
	if svc.PoolStats != nil {
		w := sched.NewPoolStatsWorker(cfg.Scheduler.PoolStatsInterval, svc.PoolStats, logger)
		g.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
