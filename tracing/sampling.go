package tracing

import "math"

// Sampled is the tri-state sampling decision of a transaction. A new
// span starts undecided; the decision engine moves it to SampledTrue
// or SampledFalse exactly once.
type Sampled int8

const (
	SampledFalse Sampled = iota - 1
	SampledUndecided
	SampledTrue
)

func (s Sampled) Decided() bool {
	return s != SampledUndecided
}

// Bool collapses the decision for export gating: only SampledTrue is
// kept.
func (s Sampled) Bool() bool {
	return s == SampledTrue
}

func (s Sampled) String() string {
	switch s {
	case SampledFalse:
		return "false"
	case SampledTrue:
		return "true"
	default:
		return "undecided"
	}
}

// Rate is a candidate sample rate: a bool, or a number in the closed
// interval [0, 1]. nil means "not configured". Anything else fails
// validation and drops the transaction.
type Rate interface{}

// TracesSampler decides the rate for one transaction. It runs with the
// facts assembled for that single decision; reading
// sc.ParentSampled lets it implement its own inheritance policy. The
// hook is not assumed pure nor panic-free: a panic propagates to the
// StartTransaction caller.
type TracesSampler func(sc SamplingContext) Rate

// RateValue coerces a rate to its numeric value, true counting as 1
// and false as 0. ok is false for values that are neither bool nor a
// number. Exporters use it to turn a transaction's applied rate into a
// sampling weight.
func RateValue(rate Rate) (v float64, ok bool) {
	return rateValue(rate)
}

// isValidRate accepts a bool or a number within [0, 1]. NaN, values of
// any other type and out-of-range numbers are rejected.
func isValidRate(rate Rate) bool {
	v, ok := rateValue(rate)
	if !ok {
		return false
	}
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// rateValue coerces a rate to its numeric value, true counting as 1
// and false as 0. ok is false for values that are neither bool nor a
// number.
func rateValue(rate Rate) (v float64, ok bool) {
	switch r := rate.(type) {
	case bool:
		if r {
			return 1, true
		}
		return 0, true
	case float64:
		return r, true
	case float32:
		return float64(r), true
	case int:
		return float64(r), true
	case int32:
		return float64(r), true
	case int64:
		return float64(r), true
	case uint:
		return float64(r), true
	case uint32:
		return float64(r), true
	case uint64:
		return float64(r), true
	default:
		return 0, false
	}
}
