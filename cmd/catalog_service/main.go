// Package main runs the book catalog service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/bookstore/internal/catalog/app"
	"github.com/abgdnv/bookstore/internal/catalog/config"
	"github.com/abgdnv/bookstore/internal/catalog/service"
	"github.com/abgdnv/bookstore/pkg/auth"
	"github.com/abgdnv/bookstore/pkg/bootstrap"
	"github.com/abgdnv/bookstore/pkg/config/configloader"
	"github.com/abgdnv/bookstore/pkg/messaging"
	natsclient "github.com/abgdnv/bookstore/pkg/nats"
	"github.com/abgdnv/bookstore/pkg/server"
	"github.com/abgdnv/bookstore/pkg/telemetry"
	"github.com/abgdnv/bookstore/pkg/web"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

const serviceName = "catalog"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run initializes the application and starts the HTTP, gRPC health and pprof servers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	g, gCtx := errgroup.WithContext(ctx)

	// shutdown hooks run once the group context is done
	shutdown := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down " + name)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := fn(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown %s: %w", name, err)
			}
			return nil
		})
	}

	if cfg.Telemetry.Traces.Enabled {
		tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		shutdown("tracer provider", tracerProvider.Shutdown)
	}

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		meterProvider, handler, err := telemetry.NewMeterProvider(serviceName)
		if err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		metricsHandler = handler
		shutdown("meter provider", meterProvider.Shutdown)
	}

	var opts []service.Option
	if lk := app.NewLookup(cfg.Lookup, logger); lk != nil {
		opts = append(opts, service.WithLookup(lk))
		logger.Info("Metadata lookup enabled", slog.String("baseurl", cfg.Lookup.BaseURL))
	}

	if cfg.Nats.Enabled {
		nc, err := natsclient.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return err
		}
		js, err := natsclient.NewJetStreamContext(nc)
		if err != nil {
			return err
		}
		if err := natsclient.EnsureStream(ctx, js, cfg.Nats.Stream, messaging.BooksSubjects); err != nil {
			nc.Close()
			return err
		}
		opts = append(opts, service.WithPublisher(natsclient.NewNatsPublisher(js)))
		shutdown("NATS connection", func(context.Context) error {
			return nc.Drain()
		})
		logger.Info("Publishing catalog events", slog.String("stream", cfg.Nats.Stream))
	}

	bookStore, closeStore, err := app.SetupStore(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	deps := app.SetupDependencies(bookStore, logger, opts...)
	if metricsHandler != nil {
		deps.Metrics = metricsHandler
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	if cfg.IdP.Enabled {
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		verifier, err := auth.NewJWTVerifier(startupCtx, cfg.IdP)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create JWT verifier: %w", err)
		}
		deps.Guard = web.Authenticator(verifier, logger)
	}

	httpServer := app.SetupHttpServer(deps, cfg)
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	shutdown("HTTP server", httpServer.Shutdown)

	healthServer := health.NewServer()
	grpcServer := app.SetupGrpcServer(healthServer, cfg.GRPCServer.ReflectionEnabled, logger)
	g.Go(func() error {
		grpcAddr := ":" + cfg.GRPCServer.Port
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})
	g.Go(func() error {
		return server.RunHealthProbe(gCtx, healthServer, app.HealthServiceName,
			cfg.Probes.Interval, cfg.Probes.Timeout, deps.Store.Ping, logger)
	})

	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr:              cfg.PProf.Addr,
			ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		shutdown("pprof server", pprofServer.Shutdown)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
