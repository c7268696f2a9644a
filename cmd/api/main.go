package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"promptqueue/internal/http/handlers"
	"promptqueue/internal/http/httpapi"
	"promptqueue/internal/infra"
	"promptqueue/internal/providers/image"
	"promptqueue/internal/providers/session"
	"promptqueue/internal/queue"
	"promptqueue/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure artifact storage")
	}

	generator, err := image.NewClient(image.Options{
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
		Model:   cfg.GenerationModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation client")
	}

	jobStore := queue.NewStore()
	processor := queue.NewProcessor(jobStore, generator, logger,
		queue.WithInterJobDelay(cfg.InterJobDelay),
		queue.WithArtifactLister(fileStore),
	)

	sessions := session.New(session.Options{
		BaseURL: cfg.SessionBaseURL,
		Logger:  &logger,
	})

	app := &handlers.App{
		Processor:          processor,
		JobStore:           jobStore,
		Artifacts:          fileStore,
		Sessions:           sessions,
		Logger:             logger,
		DefaultAspectRatio: cfg.DefaultAspectRatio,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Stop intake first; an in-flight generation call is left to finish and
	// its write-back is lost with the process, matching the no-persistence
	// contract of the queue.
	processor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
