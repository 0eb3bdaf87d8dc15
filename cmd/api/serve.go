package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/pkordes/nemt-dispatch/internal/auth"
	"github.com/pkordes/nemt-dispatch/internal/config"
	"github.com/pkordes/nemt-dispatch/internal/dedupe"
	"github.com/pkordes/nemt-dispatch/internal/handler"
	"github.com/pkordes/nemt-dispatch/internal/middleware"
	"github.com/pkordes/nemt-dispatch/internal/notify"
	"github.com/pkordes/nemt-dispatch/internal/permission"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/retention"
	"github.com/pkordes/nemt-dispatch/internal/service"
	"github.com/pkordes/nemt-dispatch/internal/telemetry"
	"github.com/pkordes/nemt-dispatch/internal/webhook"
	"github.com/pkordes/nemt-dispatch/spec"
)

const shutdownTimeout = 15 * time.Second

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Telemetry --------------------------------------------------------
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELInsecure)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	// --- Database ---------------------------------------------------------
	if migrateOnStart {
		if err := migrateUp(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
	}
	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("database connection established")

	// --- Services ---------------------------------------------------------
	app, err := buildApp(ctx, cfg, pool, metrics)
	if err != nil {
		return err
	}
	defer app.close()

	// --- Retention --------------------------------------------------------
	pruner := retention.NewPruner(app.repos.EventLogs, cfg.LogRetentionDays, nil)
	scheduler, err := retention.NewScheduler(pruner, cfg.LogRetentionSchedule, cfg.Location)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, logger, app.server, app.authenticator),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// application is the wired service graph behind the HTTP server.
type application struct {
	repos         repo.Repos
	server        *handler.Server
	authenticator *auth.Authenticator
	close         func()
}

func buildApp(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, metrics *telemetry.Metrics) (*application, error) {
	repos := repo.NewRepos(pool)
	tx := repo.NewTransactor(pool)

	authz, err := permission.NewDefaultAuthorizer(repos.Permissions, cfg.PermissionCacheTTL, nil)
	if err != nil {
		return nil, err
	}
	decoder, err := webhook.NewRittenDecoder()
	if err != nil {
		return nil, err
	}

	closers := []func(){}
	deps := service.WebhookDeps{Repos: repos, Tx: tx, Decoder: decoder, Metrics: metrics}
	if cfg.WebhookDedupe && cfg.RedisURL != "" {
		rdb, err := dedupe.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Guard = dedupe.NewRedisGuard(rdb, dedupe.DefaultTTL)
		slog.Info("redis dedupe guard enabled")
	}
	if cfg.SlackEnabled() {
		deps.Notifier = notify.NewSlack(cfg.SlackToken, cfg.SlackChannel, cfg.Location)
		slog.Info("slack notifications enabled", "channel", cfg.SlackChannel)
	}

	server := handler.NewServer(handler.Deps{
		Trips:        service.NewTripService(repos.Trips, authz),
		Export:       service.NewExportService(repos.Trips, authz, cfg.Location),
		Recurring:    service.NewRecurringTripService(tx, repos.Templates, authz, metrics, cfg.Location, nil),
		Webhooks:     service.NewWebhookService(deps, service.WebhookOptions{LeadTime: cfg.WebhookLeadTime, Dedupe: cfg.WebhookDedupe}),
		Integrations: service.NewIntegrationService(repos.Integrations, repos.EventLogs, tx, authz),
		Permissions:  service.NewPermissionService(authz),
		OpenAPI:      spec.OpenAPI,
	})

	return &application{
		repos:         repos,
		server:        server,
		authenticator: auth.NewAuthenticator(repos.Users, auth.DefaultParams),
		close: func() {
			for _, c := range closers {
				c()
			}
		},
	}, nil
}

// newRouter applies the middleware chain in order: RequestID, RealIP,
// SlogLogger, Recoverer, CORS, MaxBodySize and tracing, then mounts the API.
func newRouter(cfg config.Config, logger *slog.Logger, server *handler.Server, authn middleware.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, telemetry.ServiceName)
	})

	r.Mount("/", server.Routes(middleware.RequireBearer(authn)))
	return r
}
