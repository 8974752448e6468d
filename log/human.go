package log

import (
	"fmt"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// Human returns a logger that renders each line for people instead of
// machines: timestamp, coloured message, short pairs inline, long
// pairs and stacktraces on their own lines.
func Human() Logger {
	w := kitlog.NewSyncWriter(os.Stdout)
	logger := Logger{
		kitlog.LoggerFunc(func(keyvals ...interface{}) error {
			_, err := fmt.Fprint(w, PrettyFormat(keyvals...))
			return err
		}),
	}
	var timer kitlog.Valuer = func() interface{} { return time.Now().Format("15:04:05.99") }
	return logger.With("ts", timer)
}

// PrettyFormat renders go-kit keyvals as a human-readable line.
// ts, msg, level and stacktrace are picked out and placed; everything
// else prints as key=value, with values over 50 characters moved to
// their own indented lines.
func PrettyFormat(keyvals ...interface{}) string {
	var ts, msg, level, stacktrace interface{}
	var shorts []interface{}
	var longs []interface{}

	for i := 1; i < len(keyvals); i += 2 {
		key := keyvals[i-1]
		val := keyvals[i]
		switch key {
		case "ts":
			ts = val
		case "msg":
			msg = val
		case "level":
			level = val
		case "stacktrace":
			stacktrace = val
		default:
			pair := fmt.Sprintf("\033[34m%+v\033[39m=%+v", key, val)
			if len(fmt.Sprintf("%+v", val)) > 50 {
				longs = append(longs, pair)
			} else {
				shorts = append(shorts, pair)
			}
		}
	}

	var pvals []interface{}
	if ts != nil {
		pvals = append(pvals, fmt.Sprintf("\033[36m%s\033[0m", ts))
	}

	if msg != nil {
		colour := "39"
		switch fmt.Sprintf("%+v", level) {
		case "crit":
			colour = "35"
		case "error":
			colour = "31"
		case "warn":
			colour = "33"
		case "info":
			colour = "32"
		case "debug":
			colour = "90"
		}
		pvals = append(pvals, fmt.Sprintf("\033[%sm%s", colour, msg))
	}

	pvals = append(pvals, shorts...)

	if len(longs) > 0 {
		pvals = append(pvals, "\n")
		for _, long := range longs {
			pvals = append(pvals, "          ", long, "\n")
		}
	}

	if stacktrace != nil {
		pvals = append(pvals, fmt.Sprintf("\n%s", stacktrace), "\n")
	}

	return fmt.Sprintln(pvals...)
}
