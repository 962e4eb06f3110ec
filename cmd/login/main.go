package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/isdelr/microservicios/internal/api"
	"github.com/isdelr/microservicios/internal/api/handlers"
	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/config"
	"github.com/isdelr/microservicios/internal/database"
	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/logger"
	"github.com/isdelr/microservicios/internal/monitoring"
	"github.com/isdelr/microservicios/internal/server"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/isdelr/microservicios/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	initDB := pflag.Bool("init-db", false, "create the users table and exit")
	listUsers := pflag.Bool("list-users", false, "print registered users and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(config.ServiceLogin, *configPath)
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

	if err := database.MigrateUsers(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}
	if *initDB {
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
		return
	}

	userService := services.NewUserService(db)
	if *listUsers {
		users, err := userService.ListUsers()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list users")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tNAME\tPHONE\tADDRESS")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email,
				strings.TrimSpace(u.FirstName+" "+u.LastName), u.Phone, u.Address)
		}
		w.Flush()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}
	verifier, err := auth.NewVerifier(cfg.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token verifier")
	}

	scheduler := monitoring.NewScheduler()

	redisClient, err := server.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize redis")
	}

	var sessions session.Store
	var bus *events.Bus
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient)
		bus, err = events.NewRedisBus(redisClient, string(cfg.Service), events.NewLogger())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event bus")
		}
	} else {
		memSessions := session.NewMemoryStore()
		if err := scheduler.AddPruner("sessions", monitoring.DefaultPruneSpec, memSessions); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule session pruning")
		}
		sessions = memSessions
		bus = events.NewInProcessBus(events.NewLogger())
	}
	defer bus.Close()

	// Set up and run the background scheduler
	scheduler.Run()
	defer scheduler.Stop()

	router := api.NewLoginRouter(cfg.AllowedOrigins, api.LoginRoutes{
		Auth:   handlers.NewAuthHandler(userService, issuer, verifier, sessions, bus, handlers.NewCookieHelper(cfg.IsProduction())),
		Health: handlers.NewHealthHandler(string(cfg.Service)),
	})

	if err := server.Run(ctx, cfg.Addr(), router); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}
}
