// Package app contains the application setup for the catalog service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/bookstore/internal/catalog/config"
	"github.com/abgdnv/bookstore/internal/catalog/lookup"
	"github.com/abgdnv/bookstore/internal/catalog/service"
	"github.com/abgdnv/bookstore/internal/catalog/store"
	"github.com/abgdnv/bookstore/internal/catalog/transport/rest"
	"github.com/abgdnv/bookstore/pkg/bootstrap"
	"github.com/abgdnv/bookstore/pkg/resilience"
	"github.com/abgdnv/bookstore/pkg/server"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// HealthServiceName is the service name reported by the gRPC health server.
const HealthServiceName = "catalog.v1.CatalogService"

// PingableStore is a BookStore whose backend can be probed.
type PingableStore interface {
	store.BookStore
	Ping(ctx context.Context) error
}

type Dependencies struct {
	CatalogService service.CatalogService
	Store          PingableStore
	Logger         *slog.Logger
	// Guard protects the mutating routes, nil leaves them open.
	Guard func(http.Handler) http.Handler
	// Metrics serves the prometheus registry on MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
}

// SetupStore returns the in-memory store or a postgres store with migrations applied.
// The returned func releases the store resources.
func SetupStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (PingableStore, func(), error) {
	if cfg.Database.InMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewInMemoryStore(), func() {}, nil
	}
	if cfg.Database.Migrations != "" {
		if err := bootstrap.RunMigrations(cfg.Database.Migrations, cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied", slog.String("dir", cfg.Database.Migrations))
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), dbPool.Close, nil
}

// NewLookup builds the OpenLibrary client guarded by a circuit breaker and rate limiter.
// Returns nil when the lookup is disabled.
func NewLookup(cfg config.LookupConfig, logger *slog.Logger) *lookup.OpenLibraryClient {
	if !cfg.Enabled {
		return nil
	}
	breaker := resilience.NewCircuitBreaker[*lookup.Metadata]("openlibrary", cfg.CircuitBreaker, isLookupSuccessful, logger)
	return lookup.NewOpenLibraryClient(lookup.Config{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.Timeout,
		UserAgent:     cfg.UserAgent,
		RatePerSecond: cfg.RateLimit,
		Burst:         cfg.Burst,
	}, breaker, logger)
}

// isLookupSuccessful does not hold a caller's cancellation against OpenLibrary.
func isLookupSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func SetupDependencies(bookStore PingableStore, logger *slog.Logger, opts ...service.Option) *Dependencies {
	return &Dependencies{
		CatalogService: service.NewService(bookStore, logger, opts...),
		Store:          bookStore,
		Logger:         logger,
	}
}

// SetupHttpHandler initializes the routes and middleware of the catalog service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the catalog service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.CatalogService, deps.Guard, deps.Logger)
	handler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, deps.MetricsPath, deps.Metrics)
	}
}

// SetupHttpServer creates and configures an HTTP server for the catalog service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, "catalog-http", SetupHttpHandler(deps))
}

// SetupGrpcServer creates the gRPC server exposing hs as the health service.
func SetupGrpcServer(hs *health.Server, reflectionEnabled bool, logger *slog.Logger) *grpc.Server {
	return server.NewGRPCServer(logger, reflectionEnabled, server.HealthRegistration(hs))
}
