package log_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdl "log"
	"strings"
	"testing"
	"time"

	klog "github.com/go-kit/kit/log"

	"github.com/theplant/testingutils"
	"github.com/theplant/tracekit/kerrs"
	"github.com/theplant/tracekit/log"
)

func TestLog(t *testing.T) {
	l := log.Default()
	err := l.Crit().Log("msg", "hello")
	if err != nil {
		t.Error(err)
	}
}

// capture returns a logger whose lines are recorded for inspection.
func capture() (log.Logger, *[][]interface{}) {
	var lines [][]interface{}
	lev := klog.LoggerFunc(func(keyvals ...interface{}) error {
		line := make([]interface{}, len(keyvals))
		copy(line, keyvals)
		lines = append(lines, line)
		return nil
	})
	return log.Logger{lev}, &lines
}

func kvMap(line []interface{}) map[string]interface{} {
	m := map[string]interface{}{}
	for i := 1; i < len(line); i += 2 {
		m[fmt.Sprintf("%v", line[i-1])] = line[i]
	}
	return m
}

func TestLevels(t *testing.T) {
	l, lines := capture()

	l.Debug().Log("msg", "a")
	l.Info().Log("msg", "b")
	l.Warn().Log("msg", "c")
	l.Error().Log("msg", "d")
	l.Crit().Log("msg", "e")

	var levels []interface{}
	for _, line := range *lines {
		levels = append(levels, kvMap(line)["level"])
	}
	diff := testingutils.PrettyJsonDiff([]interface{}{"debug", "info", "warn", "error", "crit"}, levels)
	if len(diff) > 0 {
		t.Fatal(diff)
	}
}

func TestWithError(t *testing.T) {
	l, lines := capture()

	l.WithError(kerrs.Wrapv(io.EOF, "wrong io", "testcase", "TestWithError", "lineno", 23)).Log()

	line := (*lines)[0]
	expectedHead := []interface{}{"level", "error", "testcase", "TestWithError", "lineno", 23, "msg", "wrong io: EOF", "stacktrace"}
	if len(line) != len(expectedHead)+1 {
		t.Fatalf("unexpected line %v", line)
	}
	diff := testingutils.PrettyJsonDiff(expectedHead, line[:len(expectedHead)])
	if len(diff) > 0 {
		t.Fatal(diff)
	}
	if st := fmt.Sprintf("%v", line[len(line)-1]); !strings.Contains(st, "kerrs.Wrapv") {
		t.Fatalf("expected stacktrace value, got %q", st)
	}
}

func TestWithErrorPlain(t *testing.T) {
	l, lines := capture()

	l.WithError(errors.New("it's error")).Log()

	diff := testingutils.PrettyJsonDiff(
		[]interface{}{"level", "error", "msg", "it's error"},
		(*lines)[0],
	)
	if len(diff) > 0 {
		t.Fatal(diff)
	}
}

func TestWithErrorOddKeyvals(t *testing.T) {
	l, lines := capture()

	l.WithError(kerrs.Wrapv(io.EOF, "the message", "lineno")).Log()

	m := kvMap((*lines)[0])
	if m["lineno"] != "<value-missing>" {
		t.Fatalf("expected placeholder, got %v", m["lineno"])
	}
	if m["msg"] != "the message: EOF" {
		t.Fatalf("unexpected msg %v", m["msg"])
	}
}

func TestWrapError(t *testing.T) {
	l, lines := capture()

	l.WrapError(errors.New("hello error")).Log("msg", "there is a big error")

	m := kvMap((*lines)[0])
	if m["level"] != "error" {
		t.Fatalf("expected error level, got %v", m["level"])
	}
	st, ok := m["stacktrace"].(string)
	if !ok || !strings.Contains(st, "kerrs.Wrapv") {
		t.Fatalf("expected stacktrace from wrap site, got %v", m["stacktrace"])
	}
}

func TestLogWriter(t *testing.T) {
	l, lines := capture()

	w := log.LogWriter(l.Logger)
	n, err := w.Write([]byte("written line"))
	if err != nil || n != len("written line") {
		t.Fatalf("unexpected write result %d %v", n, err)
	}

	m := kvMap((*lines)[0])
	if m["msg"] != "written line" {
		t.Fatalf("unexpected msg %v", m["msg"])
	}
}

func TestSetStdLogOutput(t *testing.T) {
	l, lines := capture()

	orig := stdl.Writer()
	log.SetStdLogOutput(l)
	defer stdl.SetOutput(orig)

	stdl.Println("hello from go standard log")

	if len(*lines) != 1 {
		t.Fatalf("expected one line, got %d", len(*lines))
	}
	m := kvMap((*lines)[0])
	if msg := fmt.Sprintf("%v", m["msg"]); !strings.Contains(msg, "hello from go standard log") {
		t.Fatalf("unexpected msg %q", msg)
	}
}

func TestHuman(t *testing.T) {
	l := log.Default()
	err := l.WithError(kerrs.Wrapv(errors.New("original error"), "wrapped message", "code", 2000)).Log()
	if err != nil {
		t.Error(err)
	}

	l.Info().Log("msg", "hello world", "order_code", "111222", "customer_id", "ABCDEFG")
	l.Warn().Log("msg", "slow operation", "duration", "322ms", "detail", strings.Repeat("x", 60))
}

func TestPrettyFormat(t *testing.T) {
	line := log.PrettyFormat("ts", "15:04:05.99", "level", "info", "msg", "hello", "code", 42)

	for _, frag := range []string{"15:04:05.99", "hello", "code", "42"} {
		if !strings.Contains(line, frag) {
			t.Fatalf("expected %q in %q", frag, line)
		}
	}
	if strings.Contains(line, "level=") {
		t.Fatalf("level should be folded into the message colour, got %q", line)
	}
}

var testContext = log.Context(context.TODO(), log.Default().With("app", "testapp"))

/*
Start fetches the logger from the context; every line logged through
the returned logger carries a duration measured from the Start call.

Example output:

	15:16:20.34 hello app=testapp method=TestLogger store_id=100 duration=0.001ms
	15:16:20.64 app=testapp method=TestLogger store_id=100 request_id=123 duration=300.542ms
	15:16:20.64 debug app=testapp method=TestLogger store_id=100 duration=300.616ms
	15:16:20.64 info app=testapp method=TestLogger store_id=100 duration=300.635ms
	15:16:20.64 WrapError error: WrapError error app=testapp method=TestLogger store_id=100 duration=300.746ms
*/
func ExampleStart_log() {
	l := log.Start(testContext).With("method", "TestLogger", "store_id", 100)
	l.Log("msg", "hello")
	time.Sleep(100 * time.Millisecond)
	l.With("request_id", "123").Log()
	l.Debug().Log("msg", "debug")
	time.Sleep(200 * time.Millisecond)
	l.Info().Log("msg", "info")
	l.WrapError(errors.New("WrapError error")).Log()
	l.WithError(errors.New("WithError error")).Log()
	//Output:
}

func TestStartDuration(t *testing.T) {
	l, lines := capture()

	ctx := log.Context(context.Background(), l)
	sl := log.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	sl.Log("msg", "done")

	m := kvMap((*lines)[0])
	dur, ok := m["duration"].(string)
	if !ok || !strings.HasSuffix(dur, "ms") {
		t.Fatalf("expected duration value, got %v", m["duration"])
	}
}
