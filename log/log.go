// Package log provides a leveled, structured logger for the whole module,
// backed by zerolog. The API mirrors the one used across the vocdoni
// codebases: printf-style helpers plus *w variants taking alternating
// key-value pairs.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var (
	log   zerolog.Logger
	level string
)

func init() {
	// a sane default so packages can log before Init is called
	Init(LogLevelInfo, "stderr", nil)
}

// Init initializes the global logger with the given level ("debug", "info",
// "warn" or "error") and output ("stdout", "stderr" or a file path). If
// errorOutput is not nil, error-level entries are duplicated to it.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, errLevelWriter{errorOutput})
	}
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
		logLevel = LogLevelInfo
	}
	level = logLevel
	log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Level returns the current log level string, as passed to Init.
func Level() string { return level }

// errLevelWriter duplicates error-or-worse entries to a secondary writer.
type errLevelWriter struct{ w io.Writer }

func (e errLevelWriter) Write(p []byte) (int, error) { return len(p), nil }

func (e errLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.ErrorLevel {
		return e.w.Write(p)
	}
	return len(p), nil
}

// withFields appends alternating key-value pairs to a zerolog event.
func withFields(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprint(keyvalues[i])
		}
		ev = ev.Interface(key, keyvalues[i+1])
	}
	return ev
}

func Debug(args ...any) { log.Debug().Msg(fmt.Sprint(args...)) }
func Info(args ...any)  { log.Info().Msg(fmt.Sprint(args...)) }
func Warn(args ...any)  { log.Warn().Msg(fmt.Sprint(args...)) }
func Error(args ...any) { log.Error().Msg(fmt.Sprint(args...)) }

func Debugf(format string, args ...any) { log.Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { log.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { log.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { log.Error().Msgf(format, args...) }

// Fatalf logs the message and terminates the process.
func Fatalf(format string, args ...any) {
	log.Fatal().Msgf(format, args...)
}

func Debugw(msg string, keyvalues ...any) { withFields(log.Debug(), keyvalues...).Msg(msg) }
func Infow(msg string, keyvalues ...any)  { withFields(log.Info(), keyvalues...).Msg(msg) }
func Warnw(msg string, keyvalues ...any)  { withFields(log.Warn(), keyvalues...).Msg(msg) }
func Errorw(err error, msg string) {
	log.Error().Err(err).Msg(msg)
}
