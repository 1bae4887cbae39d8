package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/artvision/curator/backend/internal/config"
	"github.com/artvision/curator/backend/internal/handler"
	"github.com/artvision/curator/backend/internal/handler/compat"
	"github.com/artvision/curator/backend/internal/logging"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/internal/service/ai"
	"github.com/artvision/curator/backend/internal/service/auth"
	"github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/internal/storage/images"
	"github.com/artvision/curator/backend/internal/storage/sqlite"
)

const sessionJanitorInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log)
	if envErr != nil {
		logger.Debug("no .env file loaded, using system environment", "error", envErr)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	imageStore := images.NewStore(cfg.Server.MaxUploadBytes)

	db, err := sqlite.Open(cfg.Auth.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Auth.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	authSvc := auth.NewService(db, cfg.Auth)
	go authSvc.RunJanitor(ctx, sessionJanitorInterval)

	// Interfaces stay nil, not typed-nil, when the provider is missing.
	var (
		assistant       chat.Assistant
		compatAssistant compat.Assistant
	)
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			logger.Warn("failed to initialize AI service, continuing without it", "provider", cfg.AI.Provider, "error", err)
		} else {
			assistant, compatAssistant = aiSvc, aiSvc
			logger.Info("AI service initialized", "provider", cfg.AI.Provider, "model", cfg.AI.ModelName())
		}
	} else {
		logger.Warn("AI credentials not configured, chat and analysis disabled", "provider", cfg.AI.Provider)
	}

	chatSvc := chat.NewService(personaStore, imageStore, assistant, cfg.AI.HistoryLimit)

	router := handler.NewRouter(handler.Dependencies{
		Config:    cfg,
		Personas:  personaStore,
		Chat:      chatSvc,
		Images:    imageStore,
		Auth:      authSvc,
		Assistant: compatAssistant,
	})

	if err := startServer(ctx, logger, cfg.Server, router); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startServer(ctx context.Context, logger *slog.Logger, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("ArtVision curator listening", "addr", serverCfg.Addr, "env", serverCfg.Env)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
