package backup

import (
	"context"
	"errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"time"
	"warden/logger"
)

type BreakerConfig struct {
	// MaxFailures is the number of consecutive unavailable errors that opens the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before a probe is let through.
	Timeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Timeout: time.Minute}
}

type guardedEngine struct {
	engine  Engine
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded wraps engine with a circuit breaker that trips on repeated
// ErrEngineUnavailable. Per-database and configuration failures do not count.
func NewGuarded(engine Engine, config BreakerConfig) Engine {
	settings := gobreaker.Settings{
		Name:        "backup-engine",
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("backup engine breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUnavailable(err)
		},
	}
	return &guardedEngine{engine: engine, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (g *guardedEngine) Backup(ctx context.Context, req Request) (Result, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.engine.Backup(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, errors.Join(ErrEngineUnavailable, err)
		}
		return Result{}, err
	}
	return res.(Result), nil
}

func (g *guardedEngine) Delete(ctx context.Context, path string) error {
	return g.engine.Delete(ctx, path)
}
