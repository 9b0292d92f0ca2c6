// Rollcall - QR classroom attendance server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/rollcall/internal/api"
	"github.com/ashureev/rollcall/internal/config"
	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/headcount"
	"github.com/ashureev/rollcall/internal/identity"
	"github.com/ashureev/rollcall/internal/live"
	"github.com/ashureev/rollcall/internal/middleware"
	"github.com/ashureev/rollcall/internal/rpc"
	"github.com/ashureev/rollcall/internal/session"
	"github.com/ashureev/rollcall/internal/store"
	"github.com/ashureev/rollcall/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, backend, err := store.Open(cfg.StoreBackend, cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize attendance store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Attendance store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Attendance store connected", "backend", backend)

	if cfg.SeedStudents {
		seeded, err := store.SeedStudents(ctx, repo)
		if err != nil {
			slog.Error("Failed to seed students", "error", err)
			os.Exit(1)
		}
		slog.Info("Student directory ready", "seeded", seeded)
	}

	oracle, err := newOracle(ctx, cfg.Oracle)
	if err != nil {
		slog.Error("Failed to initialize headcount oracle", "error", err)
		os.Exit(1)
	}
	slog.Info("Headcount oracle ready", "backend", cfg.Oracle.Backend)

	auth, err := identity.NewAuthenticator(identity.Credentials{
		PresenterID:       cfg.Auth.PresenterID,
		PresenterPassword: cfg.Auth.PresenterPassword,
		AttendeePassword:  cfg.Auth.AttendeePassword,
	}, repo, 0)
	if err != nil {
		slog.Error("Failed to initialize authenticator", "error", err)
		os.Exit(1)
	}
	issuer, err := identity.NewIssuer(cfg.Auth.Secret, cfg.Auth.TTL, nil)
	if err != nil {
		slog.Error("Failed to initialize auth token issuer", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	hub := live.NewHub()
	sessions := session.New(repo,
		session.WithRotationPeriod(cfg.RotationPeriod),
		session.WithPollPeriod(cfg.PollPeriod),
		session.WithObserver(hub),
	)
	defer sessions.Shutdown()

	// Initialize handlers.
	handler := api.NewHandler(repo, sessions, auth, issuer, oracle, api.Options{
		QRSize:        cfg.QRSize,
		MaxImageBytes: cfg.MaxImageBytes,
		OracleTimeout: cfg.Oracle.Timeout,
		SecureCookies: !cfg.IsDevelopment(),
	})
	healthHandler := api.NewHealthHandler(repo, backend)
	wsHandler := live.NewHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(issuer))

	// Public routes.
	healthHandler.RegisterHealth(r)

	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.RequireRole(domain.RolePresenter)).Get("/ws/presenter", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.GRPCPort != "" {
		healthServer, err := rpc.NewServer(net.JoinHostPort("", cfg.GRPCPort), repo, 0)
		if err != nil {
			slog.Error("Failed to start gRPC health server", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := healthServer.Serve(ctx); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newOracle(ctx context.Context, cfg config.OracleConfig) (headcount.Oracle, error) {
	switch cfg.Backend {
	case headcount.BackendHTTP:
		return headcount.NewHTTPOracle(cfg.URL, nil, cfg.Timeout), nil
	case headcount.BackendGemini:
		return headcount.NewGeminiOracle(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return headcount.Disabled{}, nil
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
