package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"replay-director/internal/config"
	"replay-director/internal/db"
	httpapi "replay-director/internal/http"
	"replay-director/internal/logger"
	"replay-director/internal/repository"
	"replay-director/internal/service"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("DIRECTOR_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("replay director stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := service.Options{
		Settings:               cfg.Director(),
		DisableIncidentsSearch: cfg.Direction.DisableIncidentsSearch,
		RemoveNumbersFromNames: cfg.Direction.RemoveNumbersFromNames,
		RetainedRuns:           cfg.Runs.Retained,
		Version:                version,
	}
	if cfg.Cameras.Catalogue != "" {
		cameras, err := config.LoadTrackCameras(cfg.Cameras.Catalogue)
		if err != nil {
			return err
		}
		opts.Cameras = cameras
		log.Info().Int("cameras", len(cameras)).Str("path", cfg.Cameras.Catalogue).Msg("camera catalogue loaded")
	} else {
		log.Warn().Msg("no camera catalogue configured, every run will be rejected")
	}

	var store service.OverlayStore
	if cfg.Database.DSN != "" {
		gdb, err := db.Open(cfg.Database.DSN, logger.WithComponent(log, "db"))
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(gdb); err != nil {
				log.Error().Err(err).Msg("failed to close database")
			}
		}()
		store = repository.NewOverlayRepository(gdb)
	} else {
		log.Info().Msg("no database configured, overlays are kept in memory")
	}

	svc := service.NewDirectorService(opts, store, logger.WithComponent(log, "director_service"))
	defer svc.Close()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpapi.NewHandler(svc, logger.WithComponent(log, "http"))
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
	}, logger.WithComponent(log, "http"))

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
