package resilience

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Caller guards an external adapter call with a circuit breaker, bounded
// retries and a per-attempt timeout. Non-idempotent calls must be constructed
// with attempts=1; the breaker and timeout still apply.
type Caller struct {
	name     string
	log      *zap.Logger
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	attempts uint
}

func NewCaller(name string, log *zap.Logger, timeout time.Duration, attempts uint) *Caller {
	if attempts == 0 {
		attempts = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Caller{
		name:     name,
		log:      log.Named("resilience." + name),
		cb:       cb,
		timeout:  timeout,
		attempts: attempts,
	}
}

// Do runs fn under the breaker. Each attempt gets its own timeout context.
func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.OnRetry(func(n uint, err error) {
				c.log.Warn("adapter call retry",
					zap.Uint("attempt", n+1),
					zap.Error(err),
				)
			}),
		)
		return nil, r.Do(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return fn(attemptCtx)
		})
	})
	return err
}
