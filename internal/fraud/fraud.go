// Package fraud implements the fraud-risk scoring engine.
//
// Every inbound transaction is evaluated by 4 weighted signal analyzers:
// amount anomaly, transaction velocity, time-of-day pattern, and an
// LLM-backed pattern analyzer. Scores range from 0.0 (safe) to 1.0
// (definite fraud). Transactions at or above the block threshold are
// rejected before they reach the ledger.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Decision is the engine's verdict on a transaction.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// Default thresholds. A composite score at or above the block threshold
// rejects the transaction (fail-closed on the boundary); a score above
// the flag threshold is allowed but recorded for audit.
const (
	DefaultBlockThreshold = 0.7
	DefaultFlagThreshold  = 0.3
)

// Analyzer names, used as weight keys and metric labels.
const (
	AnalyzerAmount   = "amount"
	AnalyzerVelocity = "velocity"
	AnalyzerTime     = "time"
	AnalyzerPattern  = "pattern"
)

// ErrInvalidTransaction marks input validation failures. These are fatal
// to the request and are not fraud rejections.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is a single inbound transfer request. Immutable once
// received; UUID is the dedup key for logging and audit.
type Transaction struct {
	UUID           string    `json:"uuid"`
	FromAccountNum string    `json:"fromAccountNum"`
	ToAccountNum   string    `json:"toAccountNum"`
	Amount         float64   `json:"amount"`
	Description    string    `json:"description"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the required fields. A zero Timestamp is not an error;
// the engine defaults it to receipt time.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.FromAccountNum) == "" {
		return fmt.Errorf("%w: fromAccountNum is required", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.ToAccountNum) == "" {
		return fmt.Errorf("%w: toAccountNum is required", ErrInvalidTransaction)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidTransaction)
	}
	return nil
}

// HistoryEntry is one prior transaction from the originating account.
type HistoryEntry struct {
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryWindow is a read-only snapshot of prior transactions, ordered by
// timestamp descending and bounded by the configured fetch limit.
// Analyzers never mutate it.
type HistoryWindow []HistoryEntry

// SignalResult is the output of a single analyzer for one transaction.
type SignalResult struct {
	Analyzer   string  `json:"analyzer"`
	Score      float64 `json:"score"`
	Suspicious bool    `json:"suspicious"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// CompositeScore is the aggregated verdict for one transaction. Signals
// preserves analyzer evaluation order for audit, not a ranking.
type CompositeScore struct {
	Score     float64        `json:"score"`
	Signals   []SignalResult `json:"signals"`
	Decision  Decision       `json:"decision"`
	Threshold float64        `json:"threshold"`
}

// Reasons returns the reasons of all suspicious signals, in evaluation order.
func (c *CompositeScore) Reasons() []string {
	var reasons []string
	for _, s := range c.Signals {
		if s.Suspicious {
			reasons = append(reasons, s.Reason)
		}
	}
	return reasons
}

// Assessment is the persisted audit record of one scored transaction.
type Assessment struct {
	ID              string         `json:"id"`
	TransactionUUID string         `json:"transactionUuid"`
	AccountNum      string         `json:"accountNum"`
	Amount          float64        `json:"amount"`
	Score           float64        `json:"score"`
	Decision        Decision       `json:"decision"`
	Signals         []SignalResult `json:"signals"`
	EvaluatedAt     time.Time      `json:"evaluatedAt"`
}

// Store persists assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListByAccount(ctx context.Context, accountNum string, limit int) ([]*Assessment, error)
}

// HistoryFetcher supplies the bounded history window for an account.
// Implementations return an error on upstream failure; the engine treats
// any failure as an empty window rather than failing the pipeline.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, accountNum string, limit int) (HistoryWindow, error)
}

// PatternScorer is the capability interface for the AI pattern backend.
// Concrete backends (any LLM provider) are swappable without touching the
// aggregator.
type PatternScorer interface {
	ScorePattern(ctx context.Context, tx *Transaction, history HistoryWindow) (SignalResult, error)
}

// Weights maps each analyzer to its share of the composite score.
// They must be non-negative and sum to 1.0 for the score to stay in [0,1].
type Weights struct {
	Amount   float64
	Velocity float64
	Time     float64
	Pattern  float64
}

// DefaultWeights mirrors the production tuning: the AI pattern signal
// carries the highest weight.
func DefaultWeights() Weights {
	return Weights{Amount: 0.25, Velocity: 0.25, Time: 0.15, Pattern: 0.35}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Amount + w.Velocity + w.Time + w.Pattern
}

// For returns the weight for an analyzer name. Unknown names weigh zero.
func (w Weights) For(analyzer string) float64 {
	switch analyzer {
	case AnalyzerAmount:
		return w.Amount
	case AnalyzerVelocity:
		return w.Velocity
	case AnalyzerTime:
		return w.Time
	case AnalyzerPattern:
		return w.Pattern
	default:
		return 0
	}
}
