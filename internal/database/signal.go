package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithShutdown derives a context that is cancelled on SIGTERM or SIGINT.
// onSignal, when non-nil, runs before cancellation. The returned stop function
// releases the signal subscription.
func WithShutdown(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
