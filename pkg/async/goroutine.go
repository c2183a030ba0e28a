package async

import (
	"context"
	"time"

	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (zero means none)
// - Error logging
//
// Use this instead of bare `go func()` for reload work triggered by watchers
// and schedulers. The returned channel is closed once fn has returned.
//
// Example:
//
//	SafeGo(ctx, log, 30*time.Second, "scheduled rescan", func(ctx context.Context) error {
//	    return reloader.Reload(ctx, "schedule")
//	})
func SafeGo(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	if log == nil {
		log = logrus.StandardLogger()
	}
	done := make(chan struct{})

	go func() {
		defer close(done)

		ctx, cancel := parentCtx, context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
		}
		defer cancel()

		defer observability.RecoverPanic(log, taskName)

		if err := fn(ctx); err != nil {
			log.WithField("task", taskName).WithError(err).Warn("Background task failed")
		}
	}()

	return done
}

// Batch runs fn for every item with at most workers concurrent calls.
// The returned slice is index-aligned with items; entries are nil on success.
// Panics inside fn are converted into errors for that item.
//
// Example:
//
//	errs := Batch(ctx, roots, 4, func(ctx context.Context, root string) error {
//	    return validate(root)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = observability.PanicError(r)
				}
			}()
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
