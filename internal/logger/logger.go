// Package logger provides levelled logging for ragline.
// Debug, Info and Section output is gated on verbose mode (the --verbose flag);
// Warn and Error always print because they report degraded ingestion or
// retrieval that the operator should see.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(true, "DEBUG", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(true, "INFO", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(false, "WARN", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(false, "ERROR", format, args...)
}

func logf(verboseOnly bool, level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verboseOnly && !verbose {
		return
	}
	fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
}

// Badger adapts this package to badger's Logger interface.
// Badger is chatty at info level, so its info output is demoted to debug.
type Badger struct{}

// Errorf implements badger.Logger.
func (Badger) Errorf(format string, args ...any) { Error("badger: "+format, args...) }

// Warningf implements badger.Logger.
func (Badger) Warningf(format string, args ...any) { Warn("badger: "+format, args...) }

// Infof implements badger.Logger.
func (Badger) Infof(format string, args ...any) { Debug("badger: "+format, args...) }

// Debugf implements badger.Logger.
func (Badger) Debugf(format string, args ...any) { Debug("badger: "+format, args...) }
