// Package refresh runs periodic full-replacement refreshes of backend state.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrInvalidPoller = errors.New("invalid poller")

// Poller calls Func every Interval. After a failure the next attempt is
// delayed by an exponential back-off capped at MaxBackoff; a success resets
// the back-off and restores the regular interval.
type Poller struct {
	Name       string
	Interval   time.Duration
	MaxBackoff time.Duration
	Func       func(ctx context.Context) error
	Logger     *slog.Logger
}

// Run calls Func immediately and then on schedule until ctx is cancelled.
// Cancellation is not an error.
func (p Poller) Run(ctx context.Context) error {
	if p.Func == nil || p.Interval <= 0 {
		return fmt.Errorf("%w: %s needs a func and a positive interval", ErrInvalidPoller, p.Name)
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("poller", p.Name)

	bo := p.backOff()
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		wait := p.Interval
		if err := p.Func(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			wait = bo.NextBackOff()
			logger.WarnContext(ctx, "refresh failed",
				"error", err,
				"failures", failures,
				"retry_in", wait)
		} else if failures > 0 {
			logger.InfoContext(ctx, "refresh recovered", "failures", failures)
			failures = 0
			bo.Reset()
		}
		timer.Reset(wait)
	}
}

func (p Poller) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Interval
	bo.MaxInterval = max(p.MaxBackoff, p.Interval)
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
