package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acme-dental/booking-agent/internal/server"
	"github.com/acme-dental/booking-agent/pkg/agent"
	"github.com/acme-dental/booking-agent/pkg/cache"
	"github.com/acme-dental/booking-agent/pkg/calendly"
	"github.com/acme-dental/booking-agent/pkg/config"
	"github.com/acme-dental/booking-agent/pkg/faq"
	"github.com/acme-dental/booking-agent/pkg/logging"
	"github.com/acme-dental/booking-agent/pkg/session"
)

// serveCmd starts the HTTP chat server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the booking agent HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	// Shared LRU cache behind the Calendly client.
	lru := cache.New(cfg.Cache.MaxBytes)

	calendlyClient, err := calendly.New(calendly.Config{
		Token:          cfg.Calendly.Token,
		BaseURL:        cfg.Calendly.BaseURL,
		MaxRetries:     cfg.Calendly.MaxRetries,
		InitialBackoff: cfg.Calendly.InitialBackoff,
		Timeout:        cfg.Calendly.Timeout,
	}, lru)
	if err != nil {
		return fmt.Errorf("create calendly client: %w", err)
	}

	kb := faq.Load(cfg.FAQ.Path)

	sessions, cleanup, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	defer cleanup()

	receptionist, err := agent.New(agent.Config{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}, calendlyClient, kb, sessions)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.New(receptionist).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting booking agent server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// buildSessionStore picks the configured session backend.
func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "redis":
		store, err := session.NewRedisStore(ctx, cfg.Session.RedisAddr, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}
}
