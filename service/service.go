// Package service boots a traced HTTP service: it assembles logger,
// metric monitor, error notifier and the tracing engine from
// environment configuration, wraps the app's routes in the standard
// middleware pipeline and serves until interrupted.
package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinzhu/configor"
	"github.com/pkg/errors"

	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/server"
)

func logErr(l log.Logger, f func() error) {
	if err := f(); err != nil {
		l.WithError(err).Log()
	}
}

// ListenAndServe calls app to mount routes on a fresh mux, then serves
// it with the full service pipeline until SIGINT/SIGTERM. The listen
// address comes from ADDR, falling back to PORT, falling back to 9800.
func ListenAndServe(app func(context.Context, *http.ServeMux) error) {
	ctx, closer := serviceContext()
	defer closer.Close()

	logger := log.ForceContext(ctx)

	m, c, err := middleware(ctx)
	if err != nil {
		err = errors.Wrap(err, "error configuring service middleware")
		logger.WithError(err).Log()
		return
	}
	defer c.Close()

	mux := http.NewServeMux()

	if err := app(ctx, mux); err != nil {
		err = errors.Wrap(err, "error configuring service")
		logger.WithError(err).Log()
		return
	}

	hc := server.GoListenAndServe(
		server.Config{
			Addr: listenAddr(),
		},
		logger,
		m(mux),
	)
	// defers are LIFO, so the HTTP server will be closed *before* the
	// routes
	defer logErr(logger, hc.Close)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	sig := <-ch

	logger.Info().Log(
		"msg", fmt.Sprintf("received signal %v, exiting", sig),
		"signal", sig,
	)

}

type listenConfig struct {
	Addr string `env:"ADDR"`
	Port string `env:"PORT" default:"9800"`
}

func listenAddr() string {
	config := listenConfig{}
	if err := configor.New(nil).Load(&config); err != nil {
		panic(err)
	}

	if config.Addr != "" {
		return config.Addr
	}
	return ":" + config.Port
}
