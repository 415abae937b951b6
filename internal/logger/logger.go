package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	isDevelopment = false

	mu      sync.Mutex
	loggers = make(map[string]zerolog.Logger)
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// GetLogger returns the named service logger, creating it on first use.
func GetLogger(serviceName string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if lg, ok := loggers[serviceName]; ok {
		return lg
	}

	var lg zerolog.Logger
	if !isDevelopment {
		lg = zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
	} else {
		// Human-readable output for development runs
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
		}
		lg = zerolog.New(consoleWriter).Level(zerolog.TraceLevel).With().Timestamp().Str("service", serviceName).Caller().Logger()
	}
	loggers[serviceName] = lg
	return lg
}

// SetDevelopment switches newly created loggers to human-readable output.
func SetDevelopment(value bool) {
	mu.Lock()
	defer mu.Unlock()
	isDevelopment = value
	loggers = make(map[string]zerolog.Logger)
}
