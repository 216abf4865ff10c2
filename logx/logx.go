// Package logx builds the zerolog logger shared by the timer subsystem, the
// softirq framework and the simulator.
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"hvtimer/config"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing cfg.Format records at cfg.Level to stdout and
// to every extra sink (a UART, a file). Extra sinks always receive JSON so
// they stay machine-readable.
func New(cfg config.LogConfig, extra ...io.Writer) zerolog.Logger {
	return NewTo(Stdout(), cfg, extra...)
}

// NewTo is New with an explicit primary writer.
func NewTo(out io.Writer, cfg config.LogConfig, extra ...io.Writer) zerolog.Logger {
	lvl := ParseLevel(cfg.Level, zerolog.InfoLevel)

	writers := make([]io.Writer, 0, 1+len(extra))
	if strings.EqualFold(cfg.Format, "json") {
		writers = append(writers, out)
	} else {
		writers = append(writers, newConsoleWriter(out))
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, zerolog.SyncWriter(w))
		}
	}

	mw := zerolog.MultiLevelWriter(writers...)
	return zerolog.New(mw).Level(lvl).With().Timestamp().Logger()
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

// ParseLevel maps a level name to a zerolog level, returning def for
// unknown names.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return def
	}
}

// Stdout returns the configured stdout sink.
func Stdout() io.Writer { return os.Stdout }
