package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/clockctl/internal/adminapi"
	"github.com/danmuck/clockctl/internal/clock/sim"
	"github.com/danmuck/clockctl/internal/config"
	"github.com/danmuck/clockctl/internal/engine"
	"github.com/danmuck/clockctl/internal/observability"
	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "clockd.toml", "path to the daemon config file")
	initConfig := flag.Bool("init", false, "write a config template to the -config path and exit")
	force := flag.Bool("force", false, "overwrite an existing config file with -init")
	flag.Parse()

	if *initConfig {
		if err := config.WriteTemplate(*configPath, *force); err != nil {
			log.Fatal().Err(err).Msg("failed to write config template")
		}
		log.Info().Str("path", *configPath).Msg("wrote config template")
		return
	}

	cfg, err := config.LoadDaemonConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load daemon config")
	}
	logger := observability.InitLogger("clockd", cfg.LogFormat)
	zerolog.SetGlobalLevel(observability.ParseLevel(cfg.LogLevel))
	log.Info().Str("path", *configPath).Msg("loaded daemon config")

	driver, err := sim.New(sim.Options{
		Devices: config.SimDevices(cfg),
		Delay:   config.CompletionDelay(cfg),
		Logger:  logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build clock driver")
	}

	topology, err := config.AgentTopology(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve agent topology")
	}
	agents, err := registry.New(topology, driver.DeviceCount())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent registry")
	}

	pol, err := policy.NewRegistry().Build(cfg.Policy, policy.Deps{
		Agents: agents,
		Logger: logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build clock policy")
	}

	e, err := engine.New(engine.Options{
		Agents:                 agents,
		Driver:                 driver,
		Policy:                 pol,
		MaxPendingTransactions: cfg.MaxPending,
		Logger:                 logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build protocol engine")
	}
	e.Start()

	server, err := adminapi.New(adminapi.Options{
		Engine:      e,
		Addr:        cfg.Admin.Addr,
		AuthToken:   cfg.Admin.AuthToken,
		CorsOrigins: cfg.Admin.CorsOrigins,
		MaxPayload:  cfg.MaxPayload,
		PolicyName:  cfg.Policy,
		Logger:      logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build admin server")
	}
	server.RegisterRoutes()

	httpServer := &http.Server{
		Addr:    cfg.Admin.Addr,
		Handler: server.HTTPRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Admin.Addr).
			Int("agents", agents.AgentCount()).
			Int("devices", driver.DeviceCount()).
			Str("policy", cfg.Policy).
			Msg("clockd started")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}

	// Stop intake first so no new exchanges start, then close the driver
	// and wait for the correlator to drain outstanding completions.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown failed")
	}
	driver.Close()
	select {
	case <-e.Done():
	case <-time.After(shutdownGrace):
		log.Warn().Msg("correlator did not drain in time")
	}
	log.Info().Msg("clockd stopped")
}
