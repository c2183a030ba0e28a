// Package hotreload keeps a plugin session current while the process runs.
//
// A Reloader wraps Session.Reload, coalescing concurrent requests with
// singleflight and recording metrics per trigger. A Watcher feeds it from
// fsnotify events under the session's search roots, debounced so an editor
// save or an archive rewrite results in a single reload. A Scheduler feeds
// it from a cron expression for trees whose changes produce no events.
//
//	reloader := hotreload.NewReloader(session, log, metrics)
//	watcher, err := hotreload.NewWatcher(session, reloader, 500*time.Millisecond, log)
//	go watcher.Run(ctx)
package hotreload
