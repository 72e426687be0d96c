package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"prism.app/licensing/handlers"
	"prism.app/licensing/internal/config"
	"prism.app/licensing/internal/email"
	"prism.app/licensing/internal/logger"
	"prism.app/licensing/internal/ratelimit"
	"prism.app/licensing/internal/signing"
	"prism.app/licensing/internal/version"
	"prism.app/licensing/storage"
)

func main() {
	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		logger.Error("Invalid configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		}); err != nil {
			logger.Error("Failed to initialize Sentry", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	signingKey, err := signing.LoadPrivateKey(cfg.SigningKeyPEM)
	if err != nil {
		logger.Error("Failed to load signing key", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to open storage", map[string]interface{}{
			"database_url": cfg.DatabaseURL,
			"error":        err.Error(),
		})
		os.Exit(1)
	}
	defer store.Close()

	var sender *email.Sender
	if cfg.EmailEnabled() {
		sender = &email.Sender{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
		}
	}

	serviceVersion := version.Resolve()
	server := handlers.NewServer(handlers.ServerConfig{
		Storage:     store,
		Limiter:     ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow),
		SigningKey:  signingKey,
		AdminSecret: cfg.AdminSecret,
		Email:       sender,
		Version:     serviceVersion,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("License authority starting", map[string]interface{}{
			"service": handlers.ServiceName,
			"version": serviceVersion,
			"port":    cfg.Port,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", map[string]interface{}{"error": err.Error()})
			sentry.CaptureException(err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("Shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
