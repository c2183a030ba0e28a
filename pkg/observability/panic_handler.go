package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic logs a recovered panic with its stack; use it directly in a
// defer. The panic is not re-raised.
//
//	defer observability.RecoverPanic(log, "watch reload")
func RecoverPanic(logger logrus.FieldLogger, task string) {
	if r := recover(); r != nil {
		LogPanic(logger, task, r)
	}
}

// PanicError converts a recovered panic value into an error, or nil
func PanicError(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// LogPanic logs r with the current goroutine's stack
func LogPanic(logger logrus.FieldLogger, task string, r any) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"panic": r,
		"stack": string(debug.Stack()),
		"task":  task,
	}).Error("PANIC recovered")
}
