package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/config"
	"github.com/dukerupert/familytask/internal/database"
	"github.com/dukerupert/familytask/internal/logging"
	"github.com/dukerupert/familytask/internal/render"
	"github.com/dukerupert/familytask/internal/seal"
	"github.com/dukerupert/familytask/internal/server"
	"github.com/dukerupert/familytask/internal/session"
	"github.com/dukerupert/familytask/internal/store"
	ws "github.com/dukerupert/familytask/internal/websocket"
)

const sealSaltKey = "seal_salt"

func serveCmd(cfg *config.Config) *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(dev); err != nil {
				return err
			}
			return runServe(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "session database path")
	cmd.Flags().DurationVar(&cfg.NotifyTTL, "notify-ttl", cfg.NotifyTTL, "how long banners stay visible")
	cmd.Flags().BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "mark the session cookie Secure")
	cmd.Flags().BoolVar(&dev, "dev", false, "allow running without FAMILYTASK_SECRET")
	return cmd
}

func runServe(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sealer, err := openSealer(store.NewSettingsStore(db), cfg.Secret)
	if err != nil {
		return err
	}

	tmpl, err := render.New()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	registry := session.NewRegistry(session.Config{
		API:       api.Config{BaseURL: cfg.APIURL, Timeout: cfg.APITimeout},
		NotifyTTL: cfg.NotifyTTL,
	}, store.NewSessionStore(db), sealer, hub, tmpl, logger.With("component", "session"))
	defer registry.Close()

	srv := server.New(registry, hub, tmpl, server.Config{SecureCookies: cfg.SecureCookies}, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic cleanup of expired sessions and idle rate limiter entries
	go registry.Run(ctx, time.Hour)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("familytask running", "addr", "http://localhost:"+cfg.Port, "api", cfg.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// openSealer loads the key-derivation salt from settings, generating and
// storing one on first start so sealed cookies survive restarts.
func openSealer(settings *store.SettingsStore, secret string) (*seal.Sealer, error) {
	encoded, err := settings.GetOrCreate(sealSaltKey, func() (string, error) {
		salt, err := seal.GenerateSalt()
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(salt), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load seal salt: %w", err)
	}
	salt, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode seal salt: %w", err)
	}
	slog.Debug("seal key derived", "salt_bytes", len(salt))
	return seal.New(secret, salt)
}
