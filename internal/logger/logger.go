// Package logger provides verbose logging for the epicrisis CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr so users can follow the generation pipeline.
// Errors and run events are always emitted.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Format selects how log lines are written.
type Format string

const (
	// FormatConsole writes human-readable lines.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatConsole
	base              = build(os.Stderr, FormatConsole)
)

func build(w io.Writer, f Format) zerolog.Logger {
	if f == FormatJSON {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
		FormatLevel: func(i any) string {
			if s, ok := i.(string); ok {
				return fmt.Sprintf("[%s]", levelLabel(s))
			}
			return "[?]"
		},
	}
	return zerolog.New(cw)
}

func levelLabel(l string) string {
	switch l {
	case zerolog.LevelDebugValue:
		return "DEBUG"
	case zerolog.LevelInfoValue:
		return "INFO"
	case zerolog.LevelWarnValue:
		return "WARN"
	case zerolog.LevelErrorValue:
		return "ERROR"
	default:
		return l
	}
}

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
	base = build(output, format)
}

// SetFormat switches between console and JSON output.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	format = f
	base = build(output, format)
}

// Debug prints a message if verbose mode is enabled.
func Debug(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		base.Debug().Msgf(msg, args...)
	}
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
func Info(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		base.Info().Msgf(msg, args...)
	}
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		base.Warn().Msgf(msg, args...)
	}
}

// Error prints an error message regardless of verbose mode.
func Error(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Error().Msgf(msg, args...)
}

// Event starts a structured info event. It is always emitted once Msg is
// called on the returned event, so callers attach fields and finish it:
//
//	logger.Event().Str("episode", id).Str("state", "finalized").Msg("run")
func Event() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return base.Info()
}
