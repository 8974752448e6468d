package tracing

import (
	"sync"
	"sync/atomic"

	"github.com/theplant/tracekit/log"
)

// Counter receives one count per sampling decision. It is the shape of
// monitoring.Monitor's Count method, declared here so wiring a monitor
// in does not force this package to depend on it.
type Counter interface {
	Count(measurement string, value float64, tags map[string]string, fields map[string]interface{})
}

// Config is the process-wide tracing configuration.
//
// Sampling is enabled only when TracesSampler or TracesSampleRate is
// set; with neither, every transaction is dropped silently. When both
// are set the sampler wins.
type Config struct {
	// Logger receives engine diagnostics. When nil the logger found in
	// the calling context is used.
	Logger *log.Logger

	// TracesSampleRate is the static rate: a bool or a number in
	// [0, 1]. nil means not configured.
	TracesSampleRate Rate

	// TracesSampler computes the rate per transaction; it overrides
	// TracesSampleRate and the parent decision.
	TracesSampler TracesSampler

	// MaxSpans caps how many spans a sampled transaction records,
	// the transaction itself included. 0 means the recorder default
	// of 1000.
	MaxSpans int

	IDGenerator IDGenerator

	// Environment contributes request or process facts to sampling
	// contexts.
	Environment EnvironmentProvider

	// Counter, when set, gets one count per decision under the
	// "tracing.sampling" measurement.
	Counter Counter
}

var configWriteMu sync.Mutex

// ApplyConfig merges set fields into the active configuration. Zero
// fields leave the current value in place.
func ApplyConfig(cfg Config) {
	configWriteMu.Lock()
	defer configWriteMu.Unlock()
	c := *config.Load().(*Config)
	if cfg.Logger != nil {
		c.Logger = cfg.Logger
	}
	if cfg.TracesSampleRate != nil {
		c.TracesSampleRate = cfg.TracesSampleRate
	}
	if cfg.TracesSampler != nil {
		c.TracesSampler = cfg.TracesSampler
	}
	if cfg.MaxSpans != 0 {
		c.MaxSpans = cfg.MaxSpans
	}
	if cfg.IDGenerator != nil {
		c.IDGenerator = cfg.IDGenerator
	}
	if cfg.Environment != nil {
		c.Environment = cfg.Environment
	}
	if cfg.Counter != nil {
		c.Counter = cfg.Counter
	}
	config.Store(&c)
}

var config atomic.Value // access atomically

func currentConfig() *Config {
	return config.Load().(*Config)
}

func init() {
	config.Store(&Config{
		IDGenerator: defaultIDGenerator(),
		Environment: ServerEnvironment(),
	})
}
