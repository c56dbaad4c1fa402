package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// NewGRPCServer creates a new gRPC server instance with request logging, panic recovery,
// otel instrumentation, optional reflection and service registration.
func NewGRPCServer(logger *slog.Logger, enableReflection bool, registerFunc ...RegistrationFunc) *grpc.Server {
	recoveryHandler := func(p any) error {
		logger.Error("gRPC panic recovered", slog.Any("panic", p))
		return status.Errorf(codes.Internal, "internal error")
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(interceptorLogger(logger), logging.WithLogOnEvents(logging.FinishCall)),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(recoveryHandler)),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(interceptorLogger(logger), logging.WithLogOnEvents(logging.FinishCall)),
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(recoveryHandler)),
		),
	)

	if enableReflection {
		reflection.Register(grpcServer)
	}

	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}

	return grpcServer
}

// interceptorLogger adapts slog to the go-grpc-middleware logging interface.
func interceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// HealthRegistration registers hs as the grpc.health.v1 service.
func HealthRegistration(hs *health.Server) RegistrationFunc {
	return func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, hs)
	}
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// RunHealthProbe runs check every interval and publishes the result as the serving status of
// service until ctx is done. The first check runs immediately.
func RunHealthProbe(ctx context.Context, hs *health.Server, service string, interval, timeout time.Duration, check CheckFunc, logger *slog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("health probe interval must be positive: %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := check(checkCtx)
		cancel()

		current := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			current = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if current != last {
			logger.Info("health status changed",
				slog.String("service", service),
				slog.String("status", current.String()),
				slog.Any("error", err))
			last = current
		}
		hs.SetServingStatus(service, current)

		select {
		case <-ctx.Done():
			hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
			return nil
		case <-ticker.C:
		}
	}
}
