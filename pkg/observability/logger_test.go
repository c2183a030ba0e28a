package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("debug", FormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("spec", "extractor").Info("Plugin load pass complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "extractor", entry["spec"])
	assert.Equal(t, "Plugin load pass complete", entry["msg"])

	text, err := NewLogger("warn", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, text.Formatter)

	_, err = NewLogger("loud", FormatText, nil)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewLogger("info", FormatJSON, &buf)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Nil(t, LoggerFromContext(ctx))
	assert.NotNil(t, FromContext(ctx, nil))

	ctx = WithLogger(ctx, base)
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	FromContext(ctx, nil).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func quietTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
