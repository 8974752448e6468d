package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jinzhu/configor"
	"github.com/pkg/errors"

	"github.com/theplant/tracekit/errornotifier"
	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/monitoring"
	"github.com/theplant/tracekit/tracing"
)

func serviceContext() (context.Context, io.Closer) {
	ctx := context.Background()

	logger, ctx := installLogger(ctx)

	monitor, mC, ctx := installMonitor(ctx, logger)

	_, nC, ctx := installErrorNotifier(ctx, logger)

	installTracing(logger, monitor)

	return ctx, FuncCloser{mC, nC}
}

func installLogger(ctx context.Context) (log.Logger, context.Context) {
	logger := log.Default()

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		logger.Warn().Log("msg", "creating service context, SERVICE_NAME not set")
	} else {
		logger = logger.With("svc", serviceName)
		logger.Info().Log(
			"msg", fmt.Sprintf("creating service context for %s", serviceName),
		)
	}

	return logger, log.Context(ctx, logger)
}

var noopCloser = NoopCloser(func() {})

////////////////////////////////////////////////////////////
// Metric Monitor

type InfluxDBConfig struct {
	URL string
}

func installMonitor(ctx context.Context, l log.Logger) (monitoring.Monitor, io.Closer, context.Context) {
	var monitor monitoring.Monitor
	var closer func()

	config := InfluxDBConfig{}
	err := configor.New(&configor.Config{ENVPrefix: "INFLUXDB"}).Load(&config)
	if err != nil {
		goto err
	}

	if config.URL == "" {
		err = errors.New("blank influxdb url")
		goto err
	}

	monitor, closer, err = monitoring.NewInfluxdbMonitor(monitoring.InfluxMonitorConfig(config.URL), l)
	if err != nil {
		closer()
		goto err
	}

	return monitor, NoopCloser(closer), monitoring.Context(ctx, monitor)

err:
	l.Warn().Log(
		"msg", errors.Wrap(err, "error creating influxdb monitor"),
		"err", err,
	)
	return monitoring.NewLogMonitor(l), noopCloser, ctx
}

////////////////////////////////////////////////////////////
// Error Notifier

func installErrorNotifier(ctx context.Context, l log.Logger) (errornotifier.Notifier, io.Closer, context.Context) {
	airbrakeConfig := errornotifier.AirbrakeConfig{}
	err := configor.New(&configor.Config{ENVPrefix: "AIRBRAKE"}).Load(&airbrakeConfig)
	if err != nil {
		panic(err)
	}

	n, closer, err := errornotifier.NewAirbrakeNotifier(airbrakeConfig)
	if err != nil {
		l.Warn().Log(
			"msg", errors.Wrap(err, "error creating airbrake notifier"),
			"err", err,
		)

		return errornotifier.NewLogNotifier(l), noopCloser, ctx
	}

	l.Info().Log(
		"msg", "creating airbrake notifier",
		"project_id", airbrakeConfig.ProjectID,
		"env", airbrakeConfig.Environment,
	)

	return n, closer, errornotifier.Context(ctx, n)
}

////////////////////////////////////////////////////////////
// Tracing

// TracingConfig is the env-configurable part of tracing.Config.
// TracesSampleRate is a string so it can hold either form of rate:
// "true"/"false" or a number in [0, 1]. Blank leaves sampling
// unconfigured, which drops every transaction.
type TracingConfig struct {
	TracesSampleRate string
	MaxSpans         int
}

// installTracing configures the process-wide tracing engine from
// TRACING_* environment variables and points its decision counter at
// the service monitor.
func installTracing(l log.Logger, monitor monitoring.Monitor) {
	config := TracingConfig{}
	err := configor.New(&configor.Config{ENVPrefix: "TRACING"}).Load(&config)
	if err != nil {
		panic(err)
	}

	cfg := tracing.Config{
		Logger:   &l,
		MaxSpans: config.MaxSpans,
		Counter:  monitor,
	}

	if config.TracesSampleRate == "" {
		l.Warn().Log(
			"msg", "creating service context, TRACING_TRACESSAMPLERATE not set, transactions will not be sampled",
		)
	} else if rate, err := parseRate(config.TracesSampleRate); err != nil {
		l.Warn().Log(
			"msg", errors.Wrap(err, "error parsing TRACING_TRACESSAMPLERATE"),
			"rate", config.TracesSampleRate,
			"err", err,
		)
	} else {
		cfg.TracesSampleRate = rate
	}

	tracing.ApplyConfig(cfg)
	tracing.RegisterExtensions()

	l.Info().Log(
		"msg", fmt.Sprintf("tracing configured with sample rate %q", config.TracesSampleRate),
		"rate", config.TracesSampleRate,
		"max_spans", config.MaxSpans,
	)
}

func parseRate(s string) (tracing.Rate, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("rate %q is neither a bool nor a number", s)
	}
	return f, nil
}
