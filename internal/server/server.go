// Package server is the composition root: it opens the stores, builds the
// services and handlers, and mounts them on a chi router.
//
// Nothing outside this package constructs a concrete dependency. Handlers get
// services, services get repository interfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/config"
	"github.com/sakif/recipe-box/internal/handler"
	"github.com/sakif/recipe-box/internal/metrics"
	"github.com/sakif/recipe-box/internal/middleware"
	"github.com/sakif/recipe-box/internal/service"
	"github.com/sakif/recipe-box/internal/upload"
	"github.com/sakif/recipe-box/web"
)

// Server owns every long-lived resource. Close releases them.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	stores   *stores
	registry *prometheus.Registry
}

// Option adjusts how New builds the server.
type Option func(*options)

type options struct {
	provider auth.IdentityProvider
}

// WithIdentityProvider replaces OIDC discovery with p. Used by tests.
func WithIdentityProvider(p auth.IdentityProvider) Option {
	return func(o *options) { o.provider = p }
}

// New wires the whole application.
//
//  1. open the stores (sqlite, session backend, upload backend)
//  2. discover the OIDC provider
//  3. build the services on top of the repositories
//  4. build the handlers and mount the routes
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		stores:   st,
		registry: prometheus.NewRegistry(),
	}

	provider := o.provider
	if provider == nil {
		provider, err = auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	if err := s.setupRoutes(provider); err != nil {
		st.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes builds the handlers and mounts them.
//
// GET  /                      listing or login prompt
// GET  /login, /auth, /logout OIDC flow (rate limited per IP)
// GET  /recipe/add            form        (session)
// POST /recipe/add            create      (session)
// GET  /recipe/{id}           detail      (session + owner)
// GET  /recipe/edit/{id}      form        (session + owner)
// POST /recipe/edit/{id}      update      (session + owner)
// POST /recipe/delete/{id}    delete      (session + owner)
// GET  /uploads/{name}        image bytes (session + owner)
// GET  /static/*              embedded assets
// GET  /healthz, /metrics     operations
func (s *Server) setupRoutes(provider auth.IdentityProvider) error {
	cfg := s.config
	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	tokens, err := auth.NewTokenService(cfg.Session.Secret)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionManager(s.stores.sessions, tokens, cfg.Session.TTL, secure)

	uploads := upload.NewManager(s.stores.images, s.logger)
	recipeService := service.NewRecipeService(s.stores.db, uploads, s.logger)
	authService := service.NewAuthService(provider, s.stores.db, sessions, s.logger)

	render, err := handler.NewRenderer(web.Templates, sessions, s.logger)
	if err != nil {
		return err
	}
	recipeHandler := handler.NewRecipeHandler(recipeService, sessions, render, s.logger, cfg.Upload.MaxBytes)
	authHandler := handler.NewAuthHandler(authService, sessions, render, s.logger, secure)
	uploadHandler := handler.NewUploadHandler(recipeService, render)
	healthHandler := handler.NewHealthHandler(s.stores.db)

	metrics.RegisterCollectors(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.Login.RateRPS, cfg.Login.RateBurst)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(render.NotFound)

	// === Operations and assets (no session lookup) ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// === Pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(sessions, s.logger))

		r.Get("/", recipeHandler.HandleIndex)
		r.With(limiter.Limit("login")).Get("/login", authHandler.HandleLogin)
		r.With(limiter.Limit("auth")).Get("/auth", authHandler.HandleCallback)
		r.Get("/logout", authHandler.HandleLogout)
		r.With(auth.RequireSession).Get("/uploads/{name}", uploadHandler.HandleServe)

		r.Route("/recipe", func(r chi.Router) {
			r.Use(auth.RequireSession)
			r.Get("/add", recipeHandler.HandleAddForm)
			r.Post("/add", recipeHandler.HandleCreate)
			r.Get("/{id:[0-9]+}", recipeHandler.HandleDetail)
			r.Get("/edit/{id:[0-9]+}", recipeHandler.HandleEditForm)
			r.Post("/edit/{id:[0-9]+}", recipeHandler.HandleUpdate)
			r.Post("/delete/{id:[0-9]+}", recipeHandler.HandleDelete)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and session backend.
func (s *Server) Close() error {
	return s.stores.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the stores.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", s.config.Server.BaseURL),
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
