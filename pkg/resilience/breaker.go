// Package resilience builds circuit breakers for calls to remote dependencies.
package resilience

import (
	"log/slog"

	"github.com/abgdnv/bookstore/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreaker returns a breaker that opens after cfg.ConsecutiveFailures consecutive failures,
// or when the failure rate exceeds cfg.ErrorRatePercent once enough requests were seen.
// isSuccessful decides which errors count as failures; nil counts every error.
func NewCircuitBreaker[T any](name string, cfg config.CircuitBreakerConfig, isSuccessful func(err error) bool, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	halfOpen := cfg.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			}
		},
	}
	return gobreaker.NewCircuitBreaker[T](st)
}
