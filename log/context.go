package log

import (
	"context"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

type key int

const loggerKey key = iota

// Context returns a new context carrying logger.
func Context(c context.Context, logger Logger) context.Context {
	return context.WithValue(c, loggerKey, logger)
}

func FromContext(c context.Context) (Logger, bool) {
	logger, ok := c.Value(loggerKey).(Logger)
	return logger, ok
}

// ForceContext fetches the logger from the context, falling back to
// Default when none was installed. Never returns an unusable logger.
func ForceContext(c context.Context) Logger {
	logger, ok := FromContext(c)
	if !ok {
		logger = Default()
	}
	return logger
}

// Start fetches the logger from the context and stamps every line it
// logs with the duration since the Start call. Useful to bracket a
// unit of work:
//
//	l := log.Start(ctx).With("method", "SyncOrders")
//	defer l.Log("msg", "done")
func Start(c context.Context) Logger {
	logger := ForceContext(c)
	start := time.Now()
	var duration kitlog.Valuer = func() interface{} {
		return fmt.Sprintf("%.3fms", float64(time.Since(start))/float64(time.Millisecond))
	}
	return logger.With("duration", duration)
}
