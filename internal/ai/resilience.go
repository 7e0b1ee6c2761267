package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
)

type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// Retry calls fn until it succeeds, returns a permanent error or the policy is
// exhausted. Delays grow exponentially from BaseDelay.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(policy.MaxRetries, retry.NewExponential(base))

	var out T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if isPermanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		out = v
		return nil
	})
	return out, err
}

func isPermanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrToolRoundsExceeded) ||
		errors.Is(err, ErrDimensionMismatch)
}

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	OnStateChange    func(name string, from, to string)
}

// BreakerCompleter stops calling the model after consecutive failures and lets
// a probe through once OpenTimeout has passed.
type BreakerCompleter struct {
	next    Completer
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerCompleter(next Completer, cfg BreakerConfig) *BreakerCompleter {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// a cancelled request says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	return &BreakerCompleter{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*CompletionResult), nil
}
