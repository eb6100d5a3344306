// Package breaker builds the circuit breakers that guard remote collaborators.
package breaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Names of the breakers the portal creates.
const (
	Redis = "redis-revocations"
	AMQP  = "amqp-change-feed"
	Chat  = "chat-completions"
)

// ConsecutiveFailures trips a breaker open.
const ConsecutiveFailures = 3

// New returns a breaker that opens after three consecutive failures and
// half-opens again after a per-dependency timeout.
func New(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	var timeout time.Duration
	switch name {
	case Redis:
		timeout = 5 * time.Second
	case Chat:
		timeout = 15 * time.Second
	default:
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}
