// logging.go - structured logging for the kernel package.
//
// Design decision: package-level global variable is appropriate here
// because logging is an infrastructure cross-cutting concern, every
// Kernel instance shares logging semantics, and the default must cost
// nothing on the hot path when the caller hasn't configured one.

package kernel

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type a Kernel holds: a logiface.Logger
// bound to stumpy's event representation.
type Logger = *logiface.Logger[*stumpy.Event]

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

func init() {
	globalLogger.logger = newDisabledLogger()
}

func newDisabledLogger() Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDisabled),
	)
}

// SetLogger sets the package-level default logger used by any Kernel
// constructed without an explicit WithLogger option.
func SetLogger(l Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	if l == nil {
		l = newDisabledLogger()
	}
	globalLogger.logger = l
}

// defaultLogger safely retrieves the package-level default logger.
func defaultLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}
