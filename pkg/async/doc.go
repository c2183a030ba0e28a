// Package async runs background reloads and batched tree validation.
//
// Both helpers recover panics through the observability package: SafeGo logs
// them, Batch turns them into the failing item's error.
//
// SafeGo runs fn in a goroutine bounded by an optional timeout
//
//	done := async.SafeGo(ctx, log, 30*time.Second, "reload", func(ctx context.Context) error {
//		return reloader.Reload(ctx, "watch")
//	})
//	<-done
//
// Batch fans fn out over items with a worker limit
//
//	errs := async.Batch(ctx, roots, 4, func(ctx context.Context, root string) error {
//		return validateRoot(ctx, root)
//	})
//
// pkg/hotreload uses SafeGo for debounced and scheduled reloads; the validate
// command uses Batch across its roots.
package async
