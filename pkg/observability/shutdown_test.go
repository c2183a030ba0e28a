package observability

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager(t *testing.T) {
	t.Run("runs every function", func(t *testing.T) {
		sm := NewShutdownManager(nil, nil, 0)
		var calls atomic.Int32
		for i := 0; i < 3; i++ {
			sm.RegisterShutdownFunc(func(ctx context.Context) error {
				calls.Add(1)
				return nil
			})
		}

		require.NoError(t, sm.Shutdown(context.Background()))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("joins errors", func(t *testing.T) {
		sm := NewShutdownManager(nil, nil, time.Second)
		boom := errors.New("boom")
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return boom })
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })

		err := sm.Shutdown(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("runs functions last registered first", func(t *testing.T) {
		sm := NewShutdownManager(nil, nil, time.Second)
		var order []int
		for i := 0; i < 3; i++ {
			sm.RegisterShutdownFunc(func(ctx context.Context) error {
				order = append(order, i)
				return nil
			})
		}
		require.NoError(t, sm.Shutdown(context.Background()))
		assert.Equal(t, []int{2, 1, 0}, order)
	})

	t.Run("timeout", func(t *testing.T) {
		sm := NewShutdownManager(nil, nil, time.Second)
		release := make(chan struct{})
		defer close(release)
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			<-release
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, sm.Shutdown(ctx), context.DeadlineExceeded)
	})

	t.Run("wait returns when context is cancelled", func(t *testing.T) {
		sm := NewShutdownManager(nil, nil, time.Second)
		var ran atomic.Bool
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			ran.Store(true)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, sm.WaitForShutdown(ctx))
		assert.True(t, ran.Load())
	})
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	assert.NotPanics(t, func() {
		defer RecoverPanic(log, "rescan")
		panic("boom")
	})
	assert.Contains(t, buf.String(), `"task":"rescan"`)
	assert.Contains(t, buf.String(), `"panic":"boom"`)

	assert.NotPanics(t, func() {
		defer RecoverPanic(nil, "quiet")
	})
}

func TestPanicError(t *testing.T) {
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("x"), "panic: x")

	cause := errors.New("bad state")
	err := PanicError(cause)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "panic: bad state")
}

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, quietTestLogger())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), nil, quietTestLogger()))
	assert.NoError(t, (&OTelProviders{}).Shutdown(context.Background()))
}
