package plugins

import (
	"context"

	"github.com/platinummonkey/plugweave/pkg/contextkeys"
)

// WithSession returns a context carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextkeys.SessionKey, s)
}

// FromContext returns the session stored by WithSession, or nil
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(contextkeys.SessionKey).(*Session); ok {
		return s
	}
	return nil
}
