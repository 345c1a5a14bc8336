package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/exchange"
	"matchbook/internal/logger"
	"matchbook/internal/net"
	"matchbook/internal/service"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	envFile := flag.String("env", "", "Path to a .env file (default ./.env if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}
	if err := config.ApplyEnv(&cfg, *envFile); err != nil {
		log.Fatal().Err(err).Msg("unable to apply environment")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logs, err := logger.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to set up logging")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the order book repository, the matching engine and the TCP server.
	repo := engine.NewRepository(logs)
	eng := engine.New(repo, logs)
	estimator := engine.NewEstimator(repo, logs)
	orders := service.NewOrderService(repo, logs)
	exch := exchange.New(orders, eng, repo, estimator, cfg.Equilibrium.HalfLife, logs)
	srv := net.New(cfg.Server, exch, logs)

	// Block on running the server.
	if err := srv.Run(ctx); err != nil {
		logs.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
