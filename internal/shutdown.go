package internal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM, or when cancel is called.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			Shutdown("received signal " + sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown logs why the daemon is going down.
func Shutdown(message string) {
	zlog.Sugar().Infof("Shutdown initiated: %s", message)
}
