/*
Package log is a thin wrapper around go-kit's structured logger.

Levels are plain "level" key/value pairs rather than a separate
levelled API, so any go-kit compatible backend can consume the
output. Errors wrapped with kerrs log their context pairs and
stacktrace automatically via WithError.
*/
package log

import (
	"io"
	stdlog "log"
	"os"

	kitlog "github.com/go-kit/kit/log"

	"github.com/theplant/tracekit/kerrs"
)

// Logger embeds a go-kit Logger. The zero value is not usable, build
// one with Default, Human or NewNopLogger, or wrap any kitlog.Logger
// directly: log.Logger{backend}.
type Logger struct {
	kitlog.Logger
}

func (logger Logger) With(keyvals ...interface{}) Logger {
	return Logger{kitlog.With(logger.Logger, keyvals...)}
}

// The level methods prefix rather than append, so "level" leads the
// line no matter what context was bound first.

func (logger Logger) Debug() Logger {
	return Logger{kitlog.WithPrefix(logger.Logger, "level", "debug")}
}

func (logger Logger) Info() Logger {
	return Logger{kitlog.WithPrefix(logger.Logger, "level", "info")}
}

func (logger Logger) Warn() Logger {
	return Logger{kitlog.WithPrefix(logger.Logger, "level", "warn")}
}

func (logger Logger) Error() Logger {
	return Logger{kitlog.WithPrefix(logger.Logger, "level", "error")}
}

func (logger Logger) Crit() Logger {
	return Logger{kitlog.WithPrefix(logger.Logger, "level", "crit")}
}

// WithError returns an error-level logger carrying err's message, any
// key/value context attached via kerrs, and the stacktrace when one
// was recorded.
func (logger Logger) WithError(err error) Logger {
	kvs, msg, stacktrace := kerrs.Extract(err)
	kvs = append(kvs, "msg", msg)
	if len(stacktrace) > 0 {
		kvs = append(kvs, "stacktrace", stacktrace)
	}
	return logger.Error().With(kvs...)
}

// WrapError is WithError for errors that were never wrapped with
// kerrs: it attaches a stacktrace at the call site so the log still
// points somewhere useful.
func (logger Logger) WrapError(err error) Logger {
	return logger.WithError(kerrs.Wrapv(err, err.Error()))
}

// Default returns a human-oriented logger on stdout.
func Default() Logger {
	return Human()
}

func NewNopLogger() Logger {
	return Logger{kitlog.NewNopLogger()}
}

// NewTestLogger returns a logger that writes plain logfmt to stdout,
// with no timestamps, for use in Example tests.
func NewTestLogger() Logger {
	return Logger{kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))}
}

type logWriter struct {
	kitlog.Logger
}

func (l logWriter) Write(p []byte) (int, error) {
	err := l.Log("msg", string(p))
	return len(p), err
}

// LogWriter adapts a logger into an io.Writer. Each Write becomes one
// log line under the "msg" key.
func LogWriter(logger kitlog.Logger) io.Writer {
	return &logWriter{logger}
}

// SetStdLogOutput routes the standard library's global logger through
// logger, so third-party code using stdlib log ends up in the same
// stream.
func SetStdLogOutput(logger Logger) {
	stdlog.SetOutput(kitlog.NewStdlibAdapter(logger.Info()))
}
