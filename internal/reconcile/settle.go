package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

// DefaultSettleInterval is how long Lambda needs before it accepts a second
// mutation of the same function. Issuing one sooner fails with
// "An update is in progress for resource".
const DefaultSettleInterval = 1500 * time.Millisecond

// Settler blocks until the named function can take another mutation.
type Settler interface {
	Settle(ctx context.Context, function string) error
}

// Delay waits a fixed time regardless of the function's state.
type Delay time.Duration

func (d Delay) Settle(ctx context.Context, _ string) error {
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller reads the function's state back until it is no longer updating.
type Poller struct {
	Status provider.StatusReader
	Retry  Retry
}

func (p *Poller) Settle(ctx context.Context, function string) error {
	op := func() error {
		status, reason, err := p.Status.FunctionStatus(ctx, function)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read status of %s: %w", function, err))
		}
		switch status {
		case provider.StatusReady:
			return nil
		case provider.StatusFailed:
			return backoff.Permanent(fmt.Errorf("function %s failed to update: %s", function, reason))
		}
		return fmt.Errorf("function %s still %s: %s", function, status, reason)
	}

	return backoff.Retry(op, p.Retry.backOff(ctx))
}

// Retry bounds polling and conflict retries. The zero value makes a single
// attempt.
type Retry struct {
	Interval    time.Duration
	MaxAttempts int
}

func (r Retry) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.Interval
	b.MaxInterval = 10 * r.Interval
	b.MaxElapsedTime = 0
	b.Reset()

	retries := 0
	if r.MaxAttempts > 1 {
		retries = r.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func settle(ctx context.Context, s Settler, function string) error {
	if s == nil {
		s = Delay(DefaultSettleInterval)
	}
	if err := s.Settle(ctx, function); err != nil {
		return fmt.Errorf("settle %s: %w", function, err)
	}
	return nil
}
