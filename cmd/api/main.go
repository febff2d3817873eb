package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"actionfigure/internal/bootstrap"
	"actionfigure/internal/http/handlers"
	httpapi "actionfigure/internal/http/httpapi"
	"actionfigure/internal/infra"
	"actionfigure/internal/infra/credentials"
	"actionfigure/internal/pipeline"
)

const sweepInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLoggerWithLevel(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database only backs the credential store; without it keys must
	// come from the environment.
	var keyStore bootstrap.KeySource
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		keyStore = credentials.NewStore(infra.NewSQLRunner(pool, logger))
	}
	keys := bootstrap.ResolveKeys(ctx, cfg, keyStore, &logger)

	components, err := bootstrap.Build(cfg, keys, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure pipeline")
	}

	sessions, err := pipeline.NewRegistry(components.NewOrchestrator, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure sessions")
	}
	defer sessions.Close()
	go sessions.RunSweeper(ctx, sweepInterval, cfg.SessionIdleTTL)

	app := handlers.NewApp(handlers.Options{
		Analyzer:       components.Extractor,
		Submitter:      components.LetzAI,
		Poller:         components.Poller,
		Vocabulary:     components.Vocabulary,
		Sessions:       sessions,
		Logger:         logger,
		AllowedOrigins: cfg.CORSOrigins,
		Memes:          components.Memes,
		MemeSubmitter:  components.LetzAI,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("model", components.Vision.Model()).Msg("api listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
