package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/services/tetris"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("APP_ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	sessionManager, err := tetris.NewSessionManager(cfg.Session, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}

	if !cfg.AuthEnabled() {
		log.Warn().Msg("JWT_SECRET is not set, players are anonymous")
	}
	gameHandler := handlers.NewGameHandler(sessionManager, cfg.AuthEnabled(), cfg.CORSAllowedOrigins, log.Logger)
	auth := middleware.NewAuth(cfg.JWTSecret, log.Logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(gameHandler, auth, cfg.CORSAllowedOrigins, log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Int("frame_rate", cfg.Session.FrameRate).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	sessionManager.Shutdown()
	log.Info().Msg("server stopped")
}
