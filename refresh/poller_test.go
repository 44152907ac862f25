package refresh_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lh-manager/workbench/refresh"
)

func TestPoller_RunsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	p := refresh.Poller{
		Name:     "samples",
		Interval: time.Millisecond,
		Func: func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
	if got := calls.Load(); got < 3 {
		t.Errorf("calls = %d, want at least 3", got)
	}
}

func TestPoller_KeepsPollingAfterFailures(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	recovered := make(chan struct{})
	p := refresh.Poller{
		Name:       "status",
		Interval:   time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		Func: func(context.Context) error {
			n := calls.Add(1)
			switch {
			case n <= 3:
				return errors.New("backend unavailable")
			case n == 4:
				close(recovered)
			}
			return nil
		},
	}

	go func() { _ = p.Run(ctx) }()

	select {
	case <-recovered:
	case <-ctx.Done():
		t.Fatalf("poller stopped retrying after %d calls", calls.Load())
	}
}

func TestPoller_Invalid(t *testing.T) {
	tests := []struct {
		name string
		p    refresh.Poller
	}{
		{"no func", refresh.Poller{Name: "x", Interval: time.Second}},
		{"no interval", refresh.Poller{Name: "x", Func: func(context.Context) error { return nil }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Run(context.Background()); !errors.Is(err, refresh.ErrInvalidPoller) {
				t.Errorf("Run() error = %v, want ErrInvalidPoller", err)
			}
		})
	}
}
