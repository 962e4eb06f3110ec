package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/isdelr/microservicios/internal/api"
	"github.com/isdelr/microservicios/internal/api/handlers"
	"github.com/isdelr/microservicios/internal/config"
	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/guard"
	"github.com/isdelr/microservicios/internal/logger"
	"github.com/isdelr/microservicios/internal/monitoring"
	"github.com/isdelr/microservicios/internal/server"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/isdelr/microservicios/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	initDB := pflag.Bool("init-db", false, "create the products and sales tables and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(config.ServiceCatalog, *configPath)
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

	if err := database.MigrateCatalog(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}
	if *initDB {
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := monitoring.NewScheduler()

	redisClient, err := server.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validator := newValidator(cfg, redisClient, scheduler)
	bus := newBus(cfg, redisClient)
	defer bus.Close()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	sales, err := bus.Subscribe(ctx, events.TopicSaleRegistered)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to sale events")
	}
	go websocket.Relay(ctx, hub, sales, handlers.SalesTopic, "sale.registered")

	// Set up and run the background scheduler
	scheduler.Run()
	defer scheduler.Stop()

	router := api.NewCatalogRouter(cfg.AllowedOrigins, api.CatalogRoutes{
		Products:  handlers.NewProductHandler(services.NewProductService(db), bus),
		WebSocket: handlers.NewWebSocketHandler(hub, cfg.AllowedOrigins),
		Health:    handlers.NewHealthHandler(string(cfg.Service)),
		Guard:     guard.New(validator).Middleware,
	})

	if err := server.Run(ctx, cfg.Addr(), router); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}
}

func newValidator(cfg *config.Config, client redis.UniversalClient, scheduler *monitoring.Scheduler) guard.Validator {
	var validator guard.Validator = guard.NewRemoteValidator(cfg.AuthServiceURL, cfg.ValidationTimeout)
	if cfg.ValidationCacheTTL <= 0 {
		return validator
	}

	if client != nil {
		return guard.NewCachedValidator(validator, guard.NewRedisCache(client), cfg.ValidationCacheTTL)
	}
	cache := guard.NewMemoryCache()
	if err := scheduler.AddPruner("validation-cache", monitoring.DefaultPruneSpec, cache); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache pruning")
	}
	return guard.NewCachedValidator(validator, cache, cfg.ValidationCacheTTL)
}

// newBus returns a Redis streams bus when Redis is configured. Each instance
// reads with its own consumer group so every one of them sees every sale.
func newBus(cfg *config.Config, client redis.UniversalClient) *events.Bus {
	if client == nil {
		return events.NewInProcessBus(events.NewLogger())
	}
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	bus, err := events.NewRedisBus(client, string(cfg.Service)+"-"+host, events.NewLogger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	return bus
}
