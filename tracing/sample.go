package tracing

import (
	"context"
	"fmt"

	"github.com/theplant/tracekit/log"
)

// randFloat feeds the sampling draw. Swapped out in tests to force a
// decision.
var randFloat = newLockedSource().float64

// sample decides whether the transaction is kept, writing the
// undecided -> decided transition on the span and returning it.
//
// The order below is load-bearing: the random draw is the last gate,
// so no entropy is spent on transactions that configuration already
// dropped, a parent's "yes" always propagates, and a parent's "no"
// holds unless a sampler hook overrides it.
//
//  1. sampling not enabled (no sampler, no rate): drop, no diagnostic
//  2. pick the candidate rate: sampler hook, else parent decision,
//     else static rate
//  3. invalid rate: drop with a warning
//  4. rate 0 or false: drop
//  5. uniform draw in [0,1), kept iff draw < rate
//
// A panic from the sampler hook is not recovered here; it belongs to
// the StartTransaction caller. Every other failure degrades to
// "transaction dropped".
func sample(ctx context.Context, cfg *Config, s *Span, sc SamplingContext) *Span {
	if cfg == nil || (cfg.TracesSampler == nil && cfg.TracesSampleRate == nil) {
		s.setSampled(SampledFalse, nil)
		countDecision(cfg, "dropped", "disabled")
		return s
	}

	var rate Rate
	switch {
	case cfg.TracesSampler != nil:
		rate = cfg.TracesSampler(sc)
	case sc.ParentSampled.Decided():
		rate = sc.ParentSampled.Bool()
	default:
		rate = cfg.TracesSampleRate
	}

	if !isValidRate(rate) {
		diagnosticLogger(ctx, cfg).Warn().Log(
			"msg", fmt.Sprintf("dropping transaction: invalid sample rate %v (%T), expected a bool or a number between 0 and 1", rate, rate),
			"span.context", s.name,
		)
		s.setSampled(SampledFalse, nil)
		countDecision(cfg, "dropped", "invalid_rate")
		return s
	}

	v, _ := rateValue(rate)
	if v == 0 {
		diagnosticLogger(ctx, cfg).Debug().Log(
			"msg", "dropping transaction: sample rate is 0",
			"span.context", s.name,
		)
		s.setSampled(SampledFalse, rate)
		countDecision(cfg, "dropped", "rate_zero")
		return s
	}

	if randFloat() >= v {
		diagnosticLogger(ctx, cfg).Debug().Log(
			"msg", "dropping transaction: not picked by the sample rate",
			"span.context", s.name,
			"span.sample_rate", rate,
		)
		s.setSampled(SampledFalse, rate)
		countDecision(cfg, "dropped", "not_drawn")
		return s
	}

	s.setSampled(SampledTrue, rate)
	s.initRecorder(cfg.MaxSpans)
	countDecision(cfg, "sampled", "")
	return s
}

func diagnosticLogger(ctx context.Context, cfg *Config) log.Logger {
	if cfg != nil && cfg.Logger != nil {
		return *cfg.Logger
	}
	return log.ForceContext(ctx)
}

// samplingMeasurement is the counter measurement fed once per
// decision, tagged with the outcome and, for drops, the reason.
const samplingMeasurement = "tracing.sampling"

func countDecision(cfg *Config, decision, reason string) {
	if cfg == nil || cfg.Counter == nil {
		return
	}
	tags := map[string]string{"decision": decision}
	if reason != "" {
		tags["reason"] = reason
	}
	cfg.Counter.Count(samplingMeasurement, 1, tags, nil)
}
