package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Output(w)
}

// SetLevel sets the minimum level by name (debug, info, warn, error).
// Unknown or empty names select info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
}

// Level returns the current minimum level name.
func Level() string {
	mu.RLock()
	defer mu.RUnlock()
	return log.GetLevel().String()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Fatal logs at fatal level and exits the process.
// Arguments are handled in the manner of [fmt.Printf].
func Fatal(format string, args ...interface{}) {
	current().Fatal().Msgf(format, args...)
}

// Error logs at error level.
// Arguments are handled in the manner of [fmt.Printf].
func Error(format string, args ...interface{}) {
	current().Error().Msgf(format, args...)
}

// Warn logs at warn level.
// Arguments are handled in the manner of [fmt.Printf].
func Warn(format string, args ...interface{}) {
	current().Warn().Msgf(format, args...)
}

// Info logs at info level.
// Arguments are handled in the manner of [fmt.Printf].
func Info(format string, args ...interface{}) {
	current().Info().Msgf(format, args...)
}

// Debug logs at debug level.
// Arguments are handled in the manner of [fmt.Printf].
func Debug(format string, args ...interface{}) {
	current().Debug().Msgf(format, args...)
}
