// Package logger provides leveled logging for the Sentinel CLI.
// When verbose mode is enabled via the --verbose flag, debug and progress
// messages are printed to stderr so operators can follow each source through
// the ingestion pipeline. Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu         sync.RWMutex
	verbose    bool
	timestamps bool
	output     io.Writer = os.Stderr
	now                  = time.Now
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

// SetTimestamps prefixes every line with an RFC 3339 timestamp.
// Useful when output is captured by a scheduler.
func SetTimestamps(v bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = v
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// write holds the exclusive lock so lines from concurrent sources never interleave.
func write(always bool, level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !always && !verbose {
		return
	}
	prefix := ""
	if timestamps {
		prefix = now().UTC().Format(time.RFC3339) + " "
	}
	fmt.Fprintf(output, prefix+level+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "[DEBUG] ", format, args...)
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
	write(false, "[INFO] ", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	write(false, "[WARN] ", format, args...)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	write(true, "[ERROR] ", format, args...)
}

// Scoped prefixes messages with a fixed label, typically a source.
// Concurrent sources log through their own Scoped so lines stay attributable.
type Scoped struct {
	label string
}

// For returns a Scoped logger for label.
func For(label string) Scoped {
	return Scoped{label: "[" + label + "] "}
}

// Debug prints a scoped debug message.
func (s Scoped) Debug(format string, args ...any) {
	write(false, "[DEBUG] "+s.label, format, args...)
}

// Info prints a scoped informational message.
func (s Scoped) Info(format string, args ...any) {
	write(false, "[INFO] "+s.label, format, args...)
}

// Warn prints a scoped warning.
func (s Scoped) Warn(format string, args ...any) {
	write(false, "[WARN] "+s.label, format, args...)
}

// Error prints a scoped error regardless of verbose mode.
func (s Scoped) Error(format string, args ...any) {
	write(true, "[ERROR] "+s.label, format, args...)
}
