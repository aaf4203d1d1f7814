package chain

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryConfig bounds how often a failed RPC call is attempted again.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	return c
}

// Retry runs op until it succeeds, returns a permanent error, or the retry
// budget is spent. Delays grow exponentially from BaseDelay.
func Retry[T any](ctx context.Context, cfg RetryConfig, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay
	policy.MaxInterval = cfg.BaseDelay * 10

	notify := func(err error, wait time.Duration) {
		logger.Debug("rpc retry", zap.Error(err), zap.Duration("backoff", wait))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && isPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
}

// revertError matches JSON-RPC errors carrying revert data.
type revertError interface {
	ErrorData() interface{}
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var rev revertError
	return errors.As(err, &rev)
}
