package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/theplant/tracekit/errornotifier"
	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/monitoring"
	"github.com/theplant/tracekit/server"
	"github.com/theplant/tracekit/tracing"
)

func main() {

	sCfg := server.Config{Addr: ":9900"}
	log := log.Default()

	tracing.ApplyConfig(tracing.Config{
		Logger:           &log,
		TracesSampleRate: 0.5,
	})
	tracing.RegisterExtensions()

	monitor := monitoring.NewLogMonitor(log)
	notifier := errornotifier.NewLogNotifier(log)

	server.ListenAndServe(
		sCfg,
		log,
		server.Compose(
			monitoring.WithMonitor(monitor),
			errornotifier.Recover(notifier),
			server.DefaultMiddleware(log),
		)(http.HandlerFunc(errHandler)),
	)
}

func handler(w http.ResponseWriter, r *http.Request) {
	tracing.TraceFunc(r.Context(), "sub", func(ctx context.Context) error {
		time.Sleep(300 * time.Millisecond)

		return tracing.TraceFunc(ctx, "subsub", func(ctx context.Context) error {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(204)
			return nil
		})
	})
}

func errHandler(w http.ResponseWriter, r *http.Request) {
	tracing.TraceFunc(r.Context(), "errspan", func(ctx context.Context) error {

		w.WriteHeader(500)
		return errors.New("upstream error")
	})
}

func panicHandler(w http.ResponseWriter, r *http.Request) {
	tracing.TraceFunc(r.Context(), "panicspan", func(ctx context.Context) error {
		panic(errors.New("panic"))
	})
}

func panicNonErrorHandler(w http.ResponseWriter, r *http.Request) {
	tracing.TraceFunc(r.Context(), "panicnonerrorspan", func(ctx context.Context) error {
		panic("non error")
	})
}
