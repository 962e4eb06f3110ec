package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/isdelr/microservicios/internal/api"
	"github.com/isdelr/microservicios/internal/api/handlers"
	"github.com/isdelr/microservicios/internal/config"
	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/guard"
	"github.com/isdelr/microservicios/internal/logger"
	"github.com/isdelr/microservicios/internal/monitoring"
	"github.com/isdelr/microservicios/internal/server"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	initDB := pflag.Bool("init-db", false, "create the invoices table and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(config.ServiceBilling, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.MigrateBilling(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}
	if *initDB {
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := monitoring.NewScheduler()

	var validator guard.Validator = guard.NewRemoteValidator(cfg.AuthServiceURL, cfg.ValidationTimeout)
	if cfg.ValidationCacheTTL > 0 {
		redisClient, err := server.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize redis")
		}
		if redisClient != nil {
			defer redisClient.Close()
			validator = guard.NewCachedValidator(validator, guard.NewRedisCache(redisClient), cfg.ValidationCacheTTL)
		} else {
			cache := guard.NewMemoryCache()
			if err := scheduler.AddPruner("validation-cache", monitoring.DefaultPruneSpec, cache); err != nil {
				log.Fatal().Err(err).Msg("Failed to schedule cache pruning")
			}
			validator = guard.NewCachedValidator(validator, cache, cfg.ValidationCacheTTL)
		}
	}

	scheduler.Run()
	defer scheduler.Stop()

	router := api.NewBillingRouter(cfg.AllowedOrigins, api.BillingRoutes{
		Invoices: handlers.NewInvoiceHandler(services.NewInvoiceService(db)),
		Health:   handlers.NewHealthHandler(string(cfg.Service)),
		Guard:    guard.New(validator).Middleware,
	})

	if err := server.Run(ctx, cfg.Addr(), router); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}
}
