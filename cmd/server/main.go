// Package main is the entry point for the tubeclone API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (environment, optionally a .env file)
// 2. Create dependencies (logger, store, catalog clients, mailer, ...)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, ...).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/catalog"
	"github.com/sakif/tubeclone/internal/config"
	"github.com/sakif/tubeclone/internal/handler"
	"github.com/sakif/tubeclone/internal/notify"
	"github.com/sakif/tubeclone/internal/objectstore"
	"github.com/sakif/tubeclone/internal/repository"
	"github.com/sakif/tubeclone/internal/repository/firestore"
	"github.com/sakif/tubeclone/internal/repository/sqlite"
	"github.com/sakif/tubeclone/internal/server"
	"github.com/sakif/tubeclone/internal/service"
	"github.com/sakif/tubeclone/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	// Text for local development, JSON for log collectors.
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logger *slog.Logger
	if cfg.LogFormat == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	// === 3. TRACING ===
	shutdownTracing, err := telemetry.SetupTracing(ctx, "tubeclone", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}()

	metrics := telemetry.NewMetrics()

	// === 4. STORE ===
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	// The server closes the store on shutdown.

	// === 5. CATALOG ===
	catCfg := catalog.Config{
		APIKey:     cfg.YouTube.APIKey,
		RegionCode: cfg.YouTube.RegionCode,
		Endpoint:   cfg.YouTube.Endpoint,
	}
	serverClient, err := catalog.NewServerClient(ctx, catCfg)
	if err != nil {
		store.Close()
		return err
	}

	// Redis is optional; without it reads are still coalesced.
	rdb, err := catalog.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.String("error", err.Error()))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}
	cached := catalog.NewCached(serverClient, rdb, metrics, logger)

	userCatalog := func(ctx context.Context, accessToken string) (service.Catalog, error) {
		return catalog.NewUserClient(ctx, catCfg, accessToken)
	}

	// === 6. OBJECT STORAGE (optional) ===
	var images service.ImageStore
	if cfg.S3.Enabled() {
		st, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			store.Close()
			return err
		}
		images = st
	} else {
		logger.Warn("S3_BUCKET not set, image uploads are disabled")
	}

	// === 7. MAIL ===
	var mailer notify.Sender = notify.LogSender{Logger: logger}
	if cfg.SMTP.Enabled() {
		m, err := notify.NewMailer(notify.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			store.Close()
			return err
		}
		mailer = m
	} else {
		logger.Warn("SMTP_HOST not set, report emails are only logged")
	}

	// === 8. AUTH ===
	access, err := auth.NewTokenService(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)
	if err != nil {
		store.Close()
		return err
	}
	refresh, err := auth.NewTokenService(cfg.Auth.RefreshSecret, cfg.Auth.RefreshTTL)
	if err != nil {
		store.Close()
		return err
	}

	var google *auth.GoogleProvider
	if cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID/SECRET not set, Google sign-in is disabled")
	}

	// === 9. SERVER ===
	srv, err := server.New(server.Config{
		Port:             cfg.Port,
		StaticDir:        cfg.StaticDir,
		ClientURL:        cfg.ClientURL,
		ReportHistoryURL: cfg.ReportHistoryURL,
		Cookies: handler.CookieConfig{
			Secure:     cfg.Auth.CookieSecure,
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
		},
	}, server.Deps{
		Store:       store,
		Catalog:     cached,
		UserCatalog: userCatalog,
		Images:      images,
		Mailer:      mailer,
		Google:      google,
		Access:      access,
		Refresh:     refresh,
		Passwords:   auth.NewPasswordService(),
		Metrics:     metrics,
	}, logger)
	if err != nil {
		store.Close()
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}

// openStore picks the backend named by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "firestore":
		return firestore.New(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	default:
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return sqlite.New(cfg.DBPath)
	}
}
