package fraud

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/idgen"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/metrics"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/traces"
)

// Config carries the engine's decision policy. Validated at startup by
// the config package; the engine assumes it is well-formed.
type Config struct {
	BlockThreshold float64
	FlagThreshold  float64
	Weights        Weights
	HistoryLimit   int
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		BlockThreshold: DefaultBlockThreshold,
		FlagThreshold:  DefaultFlagThreshold,
		Weights:        DefaultWeights(),
		HistoryLimit:   100,
	}
}

// Engine orchestrates the per-request decision pipeline: fetch history,
// run the analyzers, aggregate, decide, update stats, record the audit
// assessment. One Engine serves all requests concurrently; per-request
// state lives on the stack.
type Engine struct {
	cfg       Config
	analyzers []Analyzer
	pattern   *PatternAnalyzer
	history   HistoryFetcher
	stats     *Stats
	store     Store
	logger    *slog.Logger
}

// NewEngine builds the scoring engine with the standard analyzer set.
func NewEngine(cfg Config, history HistoryFetcher, pattern *PatternAnalyzer, stats *Stats, store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Engine{
		cfg: cfg,
		analyzers: []Analyzer{
			NewAmountAnalyzer(DefaultAmountConfig()),
			NewVelocityAnalyzer(DefaultVelocityConfig()),
			NewTimeAnalyzer(DefaultTimeConfig()),
		},
		pattern: pattern,
		history: history,
		stats:   stats,
		store:   store,
		logger:  logger,
	}
}

// WithAnalyzers replaces the local analyzer set (for tests and tuning).
func (e *Engine) WithAnalyzers(analyzers ...Analyzer) *Engine {
	e.analyzers = analyzers
	return e
}

// Stats returns the engine's counter set.
func (e *Engine) Stats() *Stats { return e.stats }

// DegradedMode reports whether the AI analyzer is currently substituted.
func (e *Engine) DegradedMode() bool {
	return e.pattern == nil || !e.pattern.Available()
}

// Analyze runs the full decision pipeline for one transaction. It
// returns an error only for invalid input; upstream degradation (history
// fetch failure, AI unavailability) never fails the pipeline.
func (e *Engine) Analyze(ctx context.Context, tx *Transaction) (*CompositeScore, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}
	if tx.UUID == "" {
		tx.UUID = idgen.New()
	}

	ctx, span := traces.StartSpan(ctx, "fraud.analyze",
		traces.TransactionUUID(tx.UUID),
		traces.AccountNum(tx.FromAccountNum),
	)
	defer span.End()

	history := e.fetchHistory(ctx, tx.FromAccountNum)
	signals := e.runAnalyzers(ctx, tx, history)
	composite := Aggregate(signals, e.cfg.Weights, e.cfg.BlockThreshold)

	flagged := composite.Score > e.cfg.FlagThreshold
	e.stats.RecordOutcome(composite.Decision, flagged)

	metrics.DecisionsTotal.WithLabelValues(string(composite.Decision)).Inc()
	if flagged {
		metrics.FlaggedTotal.Inc()
	}
	for _, s := range composite.Signals {
		metrics.AnalyzerScore.WithLabelValues(s.Analyzer).Observe(s.Score)
	}
	span.SetAttributes(traces.Score(composite.Score), traces.DecisionAttr(string(composite.Decision)))

	if composite.Decision == DecisionBlock {
		e.logger.Warn("transaction blocked",
			"transaction_uuid", tx.UUID,
			"account", tx.FromAccountNum,
			"score", composite.Score,
			"threshold", composite.Threshold,
			"reasons", composite.Reasons(),
		)
	} else {
		e.logger.Info("transaction scored",
			"transaction_uuid", tx.UUID,
			"account", tx.FromAccountNum,
			"score", composite.Score,
			"flagged", flagged,
		)
	}

	e.recordAssessment(tx, composite)
	return composite, nil
}

// fetchHistory returns the account's history window, or an empty window
// on any upstream failure. History-dependent analyzers tolerate zero
// history; absence of data is not evidence of fraud.
func (e *Engine) fetchHistory(ctx context.Context, accountNum string) HistoryWindow {
	if e.history == nil {
		return nil
	}
	ctx, span := traces.StartSpan(ctx, "fraud.fetch_history", traces.AccountNum(accountNum))
	defer span.End()

	window, err := e.history.FetchHistory(ctx, accountNum, e.cfg.HistoryLimit)
	if err != nil {
		e.logger.Warn("history fetch failed, scoring with empty window",
			"account", accountNum,
			"error", err,
		)
		return nil
	}
	return window
}

// runAnalyzers evaluates all analyzers concurrently. The result slice
// preserves registration order (local analyzers first, AI pattern last)
// regardless of completion order.
func (e *Engine) runAnalyzers(ctx context.Context, tx *Transaction, history HistoryWindow) []SignalResult {
	n := len(e.analyzers)
	if e.pattern != nil {
		n++
	}
	signals := make([]SignalResult, n)

	var wg sync.WaitGroup
	for i, a := range e.analyzers {
		wg.Add(1)
		go func(i int, a Analyzer) {
			defer wg.Done()
			signals[i] = a.Analyze(tx, history)
		}(i, a)
	}
	if e.pattern != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			signals[n-1] = e.pattern.AnalyzeContext(ctx, tx, history)
		}()
	}
	wg.Wait()
	return signals
}

// recordAssessment persists the audit record asynchronously; failures
// are logged, never surfaced to the request.
func (e *Engine) recordAssessment(tx *Transaction, composite *CompositeScore) {
	if e.store == nil {
		return
	}
	a := &Assessment{
		ID:              idgen.WithPrefix("frd_"),
		TransactionUUID: tx.UUID,
		AccountNum:      tx.FromAccountNum,
		Amount:          tx.Amount,
		Score:           composite.Score,
		Decision:        composite.Decision,
		Signals:         composite.Signals,
		EvaluatedAt:     time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.store.Record(ctx, a); err != nil {
			e.logger.Warn("failed to record assessment", "id", a.ID, "error", err)
		}
	}()
}

// Aggregate combines the per-analyzer signals into a composite score via
// the configured weights and applies the block threshold. A score
// exactly at the threshold blocks (fail-closed). The signal order is
// preserved for audit.
func Aggregate(signals []SignalResult, weights Weights, blockThreshold float64) *CompositeScore {
	var score float64
	for _, s := range signals {
		score += s.Score * weights.For(s.Analyzer)
	}
	score = math.Round(score*1000) / 1000
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	decision := DecisionAllow
	if score >= blockThreshold {
		decision = DecisionBlock
	}

	return &CompositeScore{
		Score:     score,
		Signals:   signals,
		Decision:  decision,
		Threshold: blockThreshold,
	}
}
