package fraud

import (
	"fmt"
	"math"
	"time"
)

// Analyzer is a stateless signal analyzer. Implementations are pure
// functions of (transaction, history) and may run concurrently with each
// other; they never mutate the history window.
type Analyzer interface {
	Name() string
	Analyze(tx *Transaction, history HistoryWindow) SignalResult
}

// ---------------------------------------------------------------------------
// AmountAnalyzer: absolute ceiling, statistical outlier, card-pattern amounts
// ---------------------------------------------------------------------------

// AmountConfig tunes the amount analyzer.
type AmountConfig struct {
	Ceiling       float64 // absolute amount above which every transaction is suspicious
	OutlierSigmas float64 // standard deviations above history mean that trip the outlier check
	MinHistory    int     // below this many prior transactions only the ceiling applies
	SampleSize    int     // most recent history entries used for the mean/stddev
}

// DefaultAmountConfig matches the production tuning.
func DefaultAmountConfig() AmountConfig {
	return AmountConfig{
		Ceiling:       10000.00,
		OutlierSigmas: 3,
		MinHistory:    5,
		SampleSize:    30,
	}
}

// cardPatternAmounts are round amounts commonly used to probe stolen cards.
var cardPatternAmounts = map[float64]bool{100: true, 200: true, 500: true, 1000: true}

// AmountAnalyzer flags transactions whose amount exceeds an absolute
// ceiling or deviates from the account's historical distribution.
type AmountAnalyzer struct {
	cfg AmountConfig
}

// NewAmountAnalyzer creates an amount analyzer.
func NewAmountAnalyzer(cfg AmountConfig) *AmountAnalyzer {
	return &AmountAnalyzer{cfg: cfg}
}

func (a *AmountAnalyzer) Name() string { return AnalyzerAmount }

func (a *AmountAnalyzer) Analyze(tx *Transaction, history HistoryWindow) SignalResult {
	// Absolute ceiling. Score grows with excess magnitude: base 0.8 at the
	// ceiling, 1.0 at ten times the ceiling.
	if tx.Amount > a.cfg.Ceiling {
		score := 0.8 + 0.2*math.Min(1, math.Log10(tx.Amount/a.cfg.Ceiling))
		return SignalResult{
			Analyzer:   a.Name(),
			Score:      round3(math.Min(1, score)),
			Suspicious: true,
			Reason:     fmt.Sprintf("unusually high transaction amount: $%.2f", tx.Amount),
			Confidence: 1,
		}
	}

	// Statistical outlier relative to the account's own spending. Skipped
	// with sparse history: absence of data is not evidence of fraud.
	if len(history) >= a.cfg.MinHistory {
		mean, stddev := amountStats(history, a.cfg.SampleSize)
		if stddev > 0 && math.Abs(tx.Amount-mean) > a.cfg.OutlierSigmas*stddev {
			excess := math.Abs(tx.Amount-mean)/stddev - a.cfg.OutlierSigmas
			score := math.Min(1, 0.6+0.04*excess)
			sample := len(history)
			if sample > a.cfg.SampleSize {
				sample = a.cfg.SampleSize
			}
			return SignalResult{
				Analyzer:   a.Name(),
				Score:      round3(score),
				Suspicious: true,
				Reason: fmt.Sprintf("amount $%.2f deviates from account pattern (avg $%.2f over last %d)",
					tx.Amount, mean, sample),
				Confidence: round3(math.Min(1, float64(sample)/float64(a.cfg.SampleSize))),
			}
		}
	}

	if cardPatternAmounts[tx.Amount] {
		return SignalResult{
			Analyzer:   a.Name(),
			Score:      0.3,
			Suspicious: true,
			Reason:     fmt.Sprintf("suspicious round amount: $%.2f", tx.Amount),
			Confidence: 1,
		}
	}

	return SignalResult{
		Analyzer:   a.Name(),
		Reason:     "amount within normal range",
		Confidence: 1,
	}
}

// amountStats computes mean and population stddev over the most recent
// sampleSize entries (history is ordered newest first).
func amountStats(history HistoryWindow, sampleSize int) (mean, stddev float64) {
	n := len(history)
	if n > sampleSize {
		n = sampleSize
	}
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, e := range history[:n] {
		sum += e.Amount
	}
	mean = sum / float64(n)

	var sq float64
	for _, e := range history[:n] {
		d := e.Amount - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(n))
	return mean, stddev
}

// ---------------------------------------------------------------------------
// VelocityAnalyzer: transaction count in a trailing window
// ---------------------------------------------------------------------------

// VelocityConfig tunes the velocity analyzer.
type VelocityConfig struct {
	Window   time.Duration // trailing window measured back from the transaction timestamp
	MaxCount int           // prior transactions in the window above which the signal fires
}

// DefaultVelocityConfig matches the production tuning: 5 transactions in
// 10 minutes.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{Window: 10 * time.Minute, MaxCount: 5}
}

// VelocityAnalyzer flags rapid successive transactions from one account.
type VelocityAnalyzer struct {
	cfg VelocityConfig
}

// NewVelocityAnalyzer creates a velocity analyzer.
func NewVelocityAnalyzer(cfg VelocityConfig) *VelocityAnalyzer {
	return &VelocityAnalyzer{cfg: cfg}
}

func (a *VelocityAnalyzer) Name() string { return AnalyzerVelocity }

func (a *VelocityAnalyzer) Analyze(tx *Transaction, history HistoryWindow) SignalResult {
	if len(history) == 0 {
		return SignalResult{
			Analyzer:   a.Name(),
			Reason:     "no transaction history available",
			Confidence: 1,
		}
	}

	cutoff := tx.Timestamp.Add(-a.cfg.Window)
	count := 0
	for _, e := range history {
		if e.Timestamp.After(cutoff) {
			count++
		}
	}

	if count > a.cfg.MaxCount {
		// Base 0.7 at the threshold, reaching 1.0 once the count doubles it.
		excess := float64(count-a.cfg.MaxCount) / float64(a.cfg.MaxCount)
		score := math.Min(1, 0.7+0.3*excess)
		return SignalResult{
			Analyzer:   a.Name(),
			Score:      round3(score),
			Suspicious: true,
			Reason: fmt.Sprintf("high transaction velocity: %d transactions in %s",
				count, a.cfg.Window),
			Confidence: 1,
		}
	}

	return SignalResult{
		Analyzer:   a.Name(),
		Reason:     "transaction velocity within normal range",
		Confidence: 1,
	}
}

// ---------------------------------------------------------------------------
// TimeAnalyzer: unusual-hours band, binary-weighted
// ---------------------------------------------------------------------------

// TimeConfig tunes the time-of-day analyzer.
type TimeConfig struct {
	UnusualStartHour int // inclusive, local hour
	UnusualEndHour   int // inclusive, local hour
}

// DefaultTimeConfig marks 00:00-05:59 as unusual hours.
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{UnusualStartHour: 0, UnusualEndHour: 5}
}

// TimeAnalyzer flags transactions during unusual hours when the account
// has no history of transacting in that band. The score is a fixed
// constant when triggered; this signal is binary, not magnitude-scaled.
type TimeAnalyzer struct {
	cfg TimeConfig
}

// NewTimeAnalyzer creates a time-of-day analyzer.
func NewTimeAnalyzer(cfg TimeConfig) *TimeAnalyzer {
	return &TimeAnalyzer{cfg: cfg}
}

func (a *TimeAnalyzer) Name() string { return AnalyzerTime }

func (a *TimeAnalyzer) inBand(t time.Time) bool {
	h := t.Hour()
	return h >= a.cfg.UnusualStartHour && h <= a.cfg.UnusualEndHour
}

func (a *TimeAnalyzer) Analyze(tx *Transaction, history HistoryWindow) SignalResult {
	if a.inBand(tx.Timestamp) {
		for _, e := range history {
			if a.inBand(e.Timestamp) {
				return SignalResult{
					Analyzer:   a.Name(),
					Reason:     fmt.Sprintf("account regularly transacts around %d:00", tx.Timestamp.Hour()),
					Confidence: 1,
				}
			}
		}
		return SignalResult{
			Analyzer:   a.Name(),
			Score:      0.4,
			Suspicious: true,
			Reason:     fmt.Sprintf("transaction at unusual hour: %d:00", tx.Timestamp.Hour()),
			Confidence: 1,
		}
	}

	if wd := tx.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SignalResult{
			Analyzer:   a.Name(),
			Score:      0.2,
			Reason:     "weekend transaction (minor risk factor)",
			Confidence: 1,
		}
	}

	return SignalResult{
		Analyzer:   a.Name(),
		Reason:     "transaction timing within normal range",
		Confidence: 1,
	}
}

// round3 rounds to 3 decimal places for stable scores in logs and storage.
func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
