package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultShutdownTimeout bounds the whole shutdown sequence
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager stops the long-running commands in order: the HTTP server
// first, then every registered function last-registered-first. Watchers and
// schedulers registered after telemetry therefore stop before it is flushed.
type ShutdownManager struct {
	logger  logrus.FieldLogger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	funcs []ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager; server may be nil
func NewShutdownManager(logger logrus.FieldLogger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	sm.funcs = append(sm.funcs, fn)
	sm.mu.Unlock()
}

// WaitForShutdown blocks until ctx is done or SIGINT/SIGTERM arrives, then shuts down
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sm.logger.Info("Stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	return sm.Shutdown(shutdownCtx)
}

// Shutdown runs the stop sequence. A step that outlives ctx aborts the
// sequence; failing steps are logged and joined into the returned error.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		sm.logger.Debug("HTTP server stopped")
	}

	sm.mu.Lock()
	funcs := make([]ShutdownFunc, len(sm.funcs))
	copy(funcs, sm.funcs)
	sm.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		err := runStep(ctx, funcs[i])
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			sm.logger.WithField("step", i).Warn("Shutdown timed out")
			return fmt.Errorf("shutdown timed out at step %d: %w", i, errors.Join(append(errs, err)...))
		}
		sm.logger.WithError(err).WithField("step", i).Error("Shutdown step failed")
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	sm.logger.Info("Shutdown complete")
	return nil
}

// runStep returns when fn does or ctx ends, whichever is first
func runStep(ctx context.Context, fn ShutdownFunc) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
