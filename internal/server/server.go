// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects services, handlers,
// middleware and routes. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the outside world (store, catalog clients, object store,
// mailer, token services) from config and hands it over as Deps.
// New() then builds:
//
//	Deps.Store   → Dispatcher, ChannelService, PostService, ReportService, AuthService
//	services     → AuthHandler, YouTubeHandler
//	handlers     → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/handler"
	"github.com/sakif/tubeclone/internal/middleware"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/notify"
	"github.com/sakif/tubeclone/internal/repository"
	"github.com/sakif/tubeclone/internal/service"
	"github.com/sakif/tubeclone/internal/telemetry"
)

const serviceName = "tubeclone"

// Config holds server configuration.
type Config struct {
	Port             int
	StaticDir        string // empty disables the SPA routes
	ClientURL        string
	ReportHistoryURL string
	Cookies          handler.CookieConfig
}

// Deps is everything the server needs from the outside world.
type Deps struct {
	Store       repository.Store
	Catalog     service.Catalog         // server-credentialed, used for public reads
	UserCatalog service.UserCatalogFunc // per-request, for Google users
	Images      service.ImageStore      // nil when object storage is not configured
	Mailer      notify.Sender
	Google      *auth.GoogleProvider // nil when Google sign-in is not configured
	Access      *auth.TokenService
	Refresh     *auth.TokenService
	Passwords   *auth.PasswordService
	Metrics     *telemetry.Metrics
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. When the server shuts down it closes the store
// to flush pending writes and release connections.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

// New creates a Server and registers every route.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Catalog == nil || deps.UserCatalog == nil {
		return nil, errors.New("server: store and catalogs are required")
	}
	if deps.Access == nil || deps.Refresh == nil || deps.Passwords == nil {
		return nil, errors.New("server: token and password services are required")
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.LogSender{Logger: logger}
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /healthz, /metrics            → operational
// *    /api/auth/*                   → AuthHandler (profile requires auth)
// *    /api/youtube/*                → YouTubeHandler (all require auth)
// GET  /*                            → SPA files with index.html fallback (when StaticDir is set)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger and Metrics: see the final status, including recovered panics
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() {
	d := s.deps

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(d.Metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Operational ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// === Services ===
	dispatcher := service.NewDispatcher(d.Catalog, d.UserCatalog, d.Store, d.Metrics, s.logger)
	channelService := service.NewChannelService(d.Catalog, d.Store, d.Images, s.logger)
	postService := service.NewPostService(d.Store, d.Images, s.logger)
	reportService := service.NewReportService(d.Store, d.Catalog, d.Mailer, s.config.ReportHistoryURL, d.Metrics, s.logger)
	authService := service.NewAuthService(d.Store, d.Access, d.Refresh, d.Passwords, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, d.Google, s.config.Cookies, s.config.ClientURL, s.logger)
	ytHandler := handler.NewYouTubeHandler(dispatcher, channelService, reportService, postService, s.logger)

	requireAuth := auth.RequireAuth(auth.NewResolver(d.Access, d.Store), s.logger)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Get("/google", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/refresh-token", authHandler.HandleRefresh)
		r.With(requireAuth).Get("/profile", authHandler.HandleProfile)
	})

	s.router.Route("/api/youtube", func(r chi.Router) {
		r.Use(requireAuth)

		// Videos
		r.Get("/videos", ytHandler.HandleVideoFeed)
		r.Get("/videos/liked", ytHandler.HandleLikedVideos)
		r.Get("/videos/liked/id", ytHandler.HandlePreferenceIDs(model.RelationLikedVideo))
		r.Get("/videos/disliked/id", ytHandler.HandlePreferenceIDs(model.RelationDislikedVideo))
		r.Get("/videos/relevant/{videoId}", ytHandler.HandleRelevantVideos)
		r.Get("/videos/{videoId}", ytHandler.HandleVideo)
		r.Get("/search", ytHandler.HandleSearch)
		r.Get("/history", ytHandler.HandleHistory)

		// Comments
		r.Get("/videos/comments/liked/id", ytHandler.HandlePreferenceIDs(model.RelationLikedComment))
		r.Get("/videos/comments/disliked/id", ytHandler.HandlePreferenceIDs(model.RelationDislikedComment))
		r.Get("/videos/comments/replied/{videoId}", ytHandler.HandleRepliedComments)
		r.Get("/videos/comments/{videoId}", ytHandler.HandleVideoComments)
		r.Post("/videos/comments/edit/{commentId}", ytHandler.HandleEditComment)
		r.Post("/videos/comments/reply/{videoId}", ytHandler.HandleReply)
		r.Post("/videos/comments/{videoId}", ytHandler.HandleAddComment)

		// Ratings
		r.Post("/rating/comments/{commentId}", ytHandler.HandleRateComment)
		r.Post("/rating/{videoId}/{type}", ytHandler.HandleRateVideo)

		// Subscriptions
		r.Get("/subscriptions", ytHandler.HandleSubscriptions)
		r.Get("/subscriptions/id", ytHandler.HandlePreferenceIDs(model.RelationSubscription))
		r.Post("/subscriptions/{channelId}", ytHandler.HandleToggleSubscription)

		// Channels, posts and profile
		r.Get("/channels/ids/{channelIds}", ytHandler.HandleChannelsByIDs)
		r.Get("/channels/featured/{channelId}", ytHandler.HandleFeaturedVideos)
		r.Get("/channels/videos/{channelId}", ytHandler.HandleChannelVideos)
		r.Get("/channels/posts/mine", ytHandler.HandleMyPosts)
		r.Post("/channels/posts", ytHandler.HandleCreatePost)
		r.Post("/channels/posts/{postId}", ytHandler.HandleEditPost)
		r.Delete("/channels/posts/{postId}", ytHandler.HandleDeletePost)
		r.Post("/channels/profile", ytHandler.HandleEditProfile)
		r.Get("/channels/{channelId}", ytHandler.HandleChannel)

		// Reports
		r.Get("/reports/reasons", ytHandler.HandleReportReasons)
		r.Get("/reports/videos", ytHandler.HandleMyReports)
		r.Post("/reports/videos/{videoId}", ytHandler.HandleReportVideo)
	})

	if s.config.StaticDir != "" {
		s.router.Handle("/*", newSPAHandler(s.config.StaticDir))
	}
}

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping() error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.deps.Store.(pinger); ok {
		if err := p.Ping(); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.deps.Store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: otelhttp.NewHandler(s.router, serviceName),
		// Post and profile bodies carry base64 images, so reads get more
		// time than the JSON-only endpoints would need.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("googleSignIn", s.deps.Google != nil),
			slog.Bool("imageUploads", s.deps.Images != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
