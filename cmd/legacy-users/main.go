package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/isdelr/microservicios/internal/api"
	"github.com/isdelr/microservicios/internal/api/handlers"
	"github.com/isdelr/microservicios/internal/config"
	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/logger"
	"github.com/isdelr/microservicios/internal/server"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	initDB := pflag.Bool("init-db", false, "create the legacy users table and exit")
	pflag.Parse()

	cfg, err := config.Load(config.ServiceLegacyUsers, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.MigrateLegacyUsers(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}
	if *initDB {
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
		return
	}

	log.Warn().Msg("INSECURE: legacy users service stores unsalted SHA-256 password hashes and issues no tokens; do not expose it")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.NewLegacyRouter(cfg.AllowedOrigins, api.LegacyRoutes{
		Legacy: handlers.NewLegacyHandler(services.NewLegacyUserService(db)),
		Health: handlers.NewHealthHandler(string(cfg.Service)),
	})

	if err := server.Run(ctx, cfg.Addr(), router); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}
}
