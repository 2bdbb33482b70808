package main

import (
	"context"
	"net/http"

	"playerMarket/internal/config"
	"playerMarket/internal/handler"
	"playerMarket/internal/handler/mw"
	"playerMarket/internal/logging"
	"playerMarket/internal/repository"
	"playerMarket/internal/server"
	"playerMarket/internal/usecase"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	store, err := repository.NewPostgresStore(cfg.DSN(), cfg.DBLockTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init store")
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	mw.SetSecretKey([]byte(cfg.JWTSecret))

	svc := usecase.NewService(store)
	coordinator := usecase.NewCoordinator(
		store,
		cfg.TradeMaxAttempts,
		cfg.TradeBackoffBase,
		logging.WithComponent(log, "trade"),
	)

	if cfg.SeedPlayers > 0 {
		if err := svc.SeedPlayers(ctx, cfg.SeedPlayers, cfg.SeedBatchSize); err != nil {
			log.Fatal().Err(err).Msg("failed to seed players")
		}
		log.Info().Int("players", cfg.SeedPlayers).Msg("seeded fixture players")
	}

	h := handler.NewHandler(svc, coordinator)
	r := server.NewRouter(h, logging.WithComponent(log, "http"))

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	log.Info().Str("addr", srv.Addr).Msg("starting http server")
	server.StartHTTPServer(srv, log)
}
