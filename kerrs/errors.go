/*
Package kerrs carries errors across package boundaries with enough
context to debug them later:

  - key/value pairs that structured loggers can emit directly
  - a stacktrace captured at the first wrap site
  - multi-error aggregation for loops that must keep going
*/
package kerrs

import (
	"fmt"
	"strings"

	merr "github.com/hashicorp/go-multierror"
	jerrs "github.com/jjeffery/errors"
	perrs "github.com/pkg/errors"
)

// Wrapv wraps an error from a lower layer with a message and key/value
// context, typically the arguments of the failing call. The wrapped
// error records a stacktrace so the origin is recoverable from logs.
// An odd trailing key gets a "<value-missing>" placeholder value.
func Wrapv(err error, message string, keyvals ...interface{}) error {
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, "<value-missing>")
	}
	return perrs.WithStack(jerrs.With(keyvals...).Wrap(err, message))
}

// Append collects errs into a single error, dropping nils. Returns nil
// if nothing was collected. Use it in loops that should process every
// element before reporting what went wrong.
func Append(err error, errs ...error) error {
	return merr.Append(err, errs...).ErrorOrNil()
}

type causer interface {
	Cause() error
}

type keyvaluer interface {
	Keyvals() []interface{}
}

// Extract walks a wrapped error chain and pulls it apart for logging:
// the accumulated key/value pairs, a single colon-joined message, and
// the concatenated stacktraces of each wrap level.
func Extract(err error) (kvs []interface{}, msg string, stacktrace string) {
	if err == nil {
		return
	}

	var msgs []string
	var traces []string
	var lastMsg interface{}

	for err != nil {
		lastMsg = err.Error()

		cause, isCauser := err.(causer)
		if _, isKeyValuer := err.(keyvaluer); !isKeyValuer && isCauser {
			traces = append(traces, fmt.Sprintf("%+v", err))
		}
		if !isCauser {
			break
		}
		err = cause.Cause()

		kver, ok := err.(keyvaluer)
		if !ok {
			continue
		}
		pairs := kver.Keyvals()
		for i := 1; i < len(pairs); i += 2 {
			switch pairs[i-1] {
			case "msg":
				msgs = append(msgs, fmt.Sprintf("%+v", pairs[i]))
			case "cause":
				lastMsg = pairs[i]
			default:
				kvs = append(kvs, pairs[i-1], pairs[i])
			}
		}
	}

	msgs = append(msgs, fmt.Sprintf("%+v", lastMsg))
	msg = strings.Join(msgs, ": ")
	stacktrace = strings.Join(traces, "\n\n")

	return
}
