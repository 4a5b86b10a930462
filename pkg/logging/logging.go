// Package logging configures the process-wide zerolog logger and adapts it
// to the ProgressReporter contract for callers that do not bring their own.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/subtran/subtran/internal/collab"
)

// New builds a console logger at the named level ("debug", "info",
// "warning", "error"); anything else means info.
func New(level string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New with an explicit sink, for tests.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warning", "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Reporter bridges the ProgressReporter contract onto a zerolog logger.
type Reporter struct {
	Logger zerolog.Logger
}

func (r Reporter) Progress(percent int) {
	r.Logger.Debug().Int("percent", percent).Msg("progress")
}

func (r Reporter) Log(level collab.LogLevel, message string) {
	switch level {
	case collab.LogDebug:
		r.Logger.Debug().Msg(message)
	case collab.LogWarning:
		r.Logger.Warn().Msg(message)
	case collab.LogError:
		r.Logger.Error().Msg(message)
	default:
		r.Logger.Info().Msg(message)
	}
}
