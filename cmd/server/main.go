package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/go-crud-api/internal/config"
	"github.com/deppfellow/go-crud-api/internal/database"
	"github.com/deppfellow/go-crud-api/internal/handler"
	"github.com/deppfellow/go-crud-api/internal/logger"
	"github.com/deppfellow/go-crud-api/internal/repository"
	"github.com/deppfellow/go-crud-api/internal/router"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/deppfellow/go-crud-api/internal/service"
	"github.com/rs/zerolog/log"
)

const DefaultContextTimeout = 30

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	appLogger := logger.NewLoggerWithService(cfg.Observability, loggerService)

	if err := database.Migrate(context.Background(), &appLogger, cfg); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to migrate database")
	}

	srv, err := server.New(context.Background(), cfg, &appLogger, loggerService)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize server")
	}

	repos := repository.NewRepositories(srv)

	services, err := service.NewServices(srv, repos)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("could not create services")
	}

	handlers, err := handler.NewHandlers(srv, services, repos)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("could not create handlers")
	}

	r := router.NewRouter(srv, handlers, services)
	srv.SetupHTTPServer(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited properly")
}
