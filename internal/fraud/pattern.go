package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/circuitbreaker"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/metrics"
)

// DegradedReason is the reason string of the substitute result emitted
// while the AI backend is unavailable.
const DegradedReason = "AI analyzer unavailable: degraded mode"

// DefaultPatternTimeout bounds a single AI call. A slow or hung backend
// must never stall the pipeline beyond this.
const DefaultPatternTimeout = 5 * time.Second

const breakerKey = "pattern_backend"

// PatternAnalyzer wraps the AI pattern backend with availability
// tracking. On timeout, malformed response, or explicit unavailability
// it substitutes a deterministic zero-score result so the AI signal
// contributes exactly nothing to the weighted sum; excluding it instead
// would silently change the effective threshold.
//
// No per-request retry: a failed call falls back immediately, and a real
// call is re-attempted on a later request once the breaker's short open
// window lapses.
type PatternAnalyzer struct {
	scorer  PatternScorer
	breaker *circuitbreaker.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewPatternAnalyzer wraps scorer with timeout and fallback handling.
// A nil scorer (missing credentials at startup) pins the analyzer in
// degraded mode.
func NewPatternAnalyzer(scorer PatternScorer, timeout time.Duration, logger *slog.Logger) *PatternAnalyzer {
	if timeout <= 0 {
		timeout = DefaultPatternTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &PatternAnalyzer{
		scorer: scorer,
		// Trip after 3 consecutive failures, probe again after 5s. The
		// short window keeps degradation transient without paying the
		// full call timeout on every request while the backend is down.
		breaker: circuitbreaker.New(3, 5*time.Second),
		timeout: timeout,
		logger:  logger,
	}
	metrics.DegradedMode.Set(boolGauge(scorer == nil))
	return p
}

func (p *PatternAnalyzer) Name() string { return AnalyzerPattern }

// Available reports whether the AI backend is currently usable.
func (p *PatternAnalyzer) Available() bool {
	return p.scorer != nil && p.breaker.State(breakerKey) == circuitbreaker.StateClosed
}

// AnalyzeContext scores the transaction with the AI backend, falling
// back to the degraded substitute on any failure.
func (p *PatternAnalyzer) AnalyzeContext(ctx context.Context, tx *Transaction, history HistoryWindow) SignalResult {
	if p.scorer == nil {
		return p.degraded(tx)
	}
	if !p.breaker.Allow(breakerKey) {
		metrics.AICallsTotal.WithLabelValues("short_circuit").Inc()
		return p.degraded(tx)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.scorer.ScorePattern(callCtx, tx, history)
	if err != nil {
		p.breaker.RecordFailure(breakerKey)
		metrics.AICallsTotal.WithLabelValues("error").Inc()
		metrics.DegradedMode.Set(1)
		p.logger.Warn("AI pattern analysis failed, using degraded substitute",
			"transaction_uuid", tx.UUID,
			"error", err,
		)
		return p.degraded(tx)
	}

	p.breaker.RecordSuccess(breakerKey)
	metrics.AICallsTotal.WithLabelValues("ok").Inc()
	metrics.DegradedMode.Set(0)
	result.Analyzer = p.Name()
	return result
}

// degraded returns the deterministic substitute result. The heuristic
// note only enriches the audit reason; the score stays exactly zero.
func (p *PatternAnalyzer) degraded(tx *Transaction) SignalResult {
	reason := DegradedReason
	if note := heuristicNote(tx.Amount); note != "" {
		reason += " (" + note + ")"
	}
	return SignalResult{
		Analyzer: p.Name(),
		Reason:   reason,
	}
}

// heuristicNote is the rule-of-thumb annotation carried over from dummy
// mode, for audit readability only.
func heuristicNote(amount float64) string {
	switch {
	case amount > 5000:
		return "heuristic: large amount would warrant review"
	case amount < 1:
		return "heuristic: micro-transaction resembles card testing"
	default:
		return ""
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
