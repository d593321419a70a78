package generation

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	pkgerrors "canvas-backend/pkg/errors"
)

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the standard provider breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerGenerator wraps a ContentGenerator with a circuit breaker so a
// degraded provider fails fast instead of stacking up slow requests.
type BreakerGenerator struct {
	next    ports.ContentGenerator
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ ports.ContentGenerator = (*BreakerGenerator)(nil)

// NewBreakerGenerator wraps the given generator.
func NewBreakerGenerator(next ports.ContentGenerator, config BreakerConfig, logger *zap.Logger) *BreakerGenerator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "content-generator",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Generator circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerGenerator{next: next, breaker: breaker, logger: logger}
}

func (g *BreakerGenerator) GenerateText(ctx context.Context, req ports.TextRequest) (ports.TextResult, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.next.GenerateText(ctx, req)
	})
	if err != nil {
		return ports.TextResult{}, mapBreakerError(err)
	}
	return result.(ports.TextResult), nil
}

func (g *BreakerGenerator) RefineText(ctx context.Context, req ports.RefineTextRequest) (ports.TextResult, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.next.RefineText(ctx, req)
	})
	if err != nil {
		return ports.TextResult{}, mapBreakerError(err)
	}
	return result.(ports.TextResult), nil
}

func (g *BreakerGenerator) GenerateThumbnail(ctx context.Context, req ports.ThumbnailRequest) (ports.ThumbnailResult, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.next.GenerateThumbnail(ctx, req)
	})
	if err != nil {
		return ports.ThumbnailResult{}, mapBreakerError(err)
	}
	return result.(ports.ThumbnailResult), nil
}

func mapBreakerError(err error) error {
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return pkgerrors.NewGeneration("content provider temporarily unavailable", err)
	default:
		return err
	}
}
