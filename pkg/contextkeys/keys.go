// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/plugweave/pkg/contextkeys"
//	ctx = context.WithValue(ctx, contextkeys.SessionKey, session)
//	session := ctx.Value(contextkeys.SessionKey).(*plugins.Session)
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *plugins.Session
	// Set by: plugins.WithSession, API server request middleware
	// Used by: API handlers, CLI commands sharing one session
	// Type: *plugins.Session
	SessionKey Key = "plugin_session"

	// LoggerKey contains logrus.FieldLogger
	// Set by: observability.WithLogger
	// Used by: Session load passes, API handlers
	// Type: logrus.FieldLogger
	LoggerKey Key = "logger"

	// RequestIDKey contains request ID string (UUID)
	// Set by: API request middleware
	// Used by: Logger, tracing attributes
	// Type: string
	RequestIDKey Key = "request_id"

	// ReloadTriggerKey contains the reason a reload was started
	// Set by: hotreload watcher, scheduler, API reload handler
	// Used by: Reloader metrics and logs
	// Type: string
	ReloadTriggerKey Key = "reload_trigger"
)
