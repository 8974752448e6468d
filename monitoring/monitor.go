// Package monitoring is the metrics sink for request instrumentation
// and for the tracing engine's sampling decision counts. It writes to
// InfluxDB by default and degrades to a log-backed monitor.
package monitoring

import (
	"time"

	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/tracing"
)

// Monitor defines an interface for inserting records into a metrics
// store.
type Monitor interface {
	InsertRecord(measurement string, value interface{}, tags map[string]string, fields map[string]interface{}, time time.Time)
	Count(measurement string, value float64, tags map[string]string, fields map[string]interface{})
	CountError(measurement string, value float64, err error)
	CountSimple(measurement string, value float64)
}

// Count's shape satisfies tracing.Counter, so any Monitor can be wired
// into tracing.Config to count sampling decisions.
var _ tracing.Counter = Monitor(nil)

// NewLogMonitor creates a Monitor that logs metrics to the passed
// log.Logger.
func NewLogMonitor(l log.Logger) Monitor {
	return logMonitor{l}
}

type logMonitor struct {
	logger log.Logger
}

func (l logMonitor) InsertRecord(measurement string, value interface{}, tags map[string]string, fields map[string]interface{}, time time.Time) {
	withKVs(l.logger, tags, fields).Info().Log(
		"metric", measurement,
		"value", value,
		"time", time,
	)
}

func (l logMonitor) Count(measurement string, value float64, tags map[string]string, fields map[string]interface{}) {
	withKVs(l.logger, tags, fields).Info().Log(
		"metric", measurement,
		"value", value,
	)
}

func (l logMonitor) CountError(measurement string, value float64, err error) {
	l.logger.Error().Log(
		"metric", measurement,
		"value", value,
		"err", err,
	)
}

func (l logMonitor) CountSimple(measurement string, value float64) {
	l.logger.Info().Log(
		"metric", measurement,
		"value", value,
	)
}

func withKVs(logger log.Logger, tags map[string]string, fields map[string]interface{}) log.Logger {
	kvs := []interface{}{}
	for k, v := range tags {
		kvs = append(kvs, k, v)
	}
	for k, v := range fields {
		kvs = append(kvs, k, v)
	}
	return logger.With(kvs...)
}
