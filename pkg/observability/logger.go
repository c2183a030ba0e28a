package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/platinummonkey/plugweave/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger creates a logrus logger with the given level and format
func NewLogger(level, format string, output io.Writer) (*logrus.Logger, error) {
	if output == nil {
		output = os.Stderr
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be %s or %s", format, FormatText, FormatJSON)
	}

	return log, nil
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, log logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, log)
}

// LoggerFromContext returns the logger stored by WithLogger, or nil
func LoggerFromContext(ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return nil
	}
	if log, ok := ctx.Value(contextkeys.LoggerKey).(logrus.FieldLogger); ok {
		return log
	}
	return nil
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// FromContext returns the context logger (or fallback) with request and
// trace identifiers attached
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	log := LoggerFromContext(ctx)
	if log == nil {
		log = fallback
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		log = log.WithField("request_id", requestID)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		log = log.WithFields(logrus.Fields{
			"trace_id": spanCtx.TraceID().String(),
			"span_id":  spanCtx.SpanID().String(),
		})
	}
	return log
}
