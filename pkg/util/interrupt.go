package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithInterrupt returns a context cancelled on SIGINT/SIGTERM or when parent is done.
func WithInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// WaitForInterrupt blocks until ctx is done (or a signal arrives) and then runs callback.
func WaitForInterrupt(ctx context.Context, callback func()) {
	waitForInterruptContext(ctx, callback)
}

// waitForInterruptContext allows tests to inject a context that can be cancelled without real OS signals.
func waitForInterruptContext(parent context.Context, callback func()) {
	ctx, stop := WithInterrupt(parent)
	defer stop()

	<-ctx.Done()
	if callback != nil {
		callback()
	}
}
