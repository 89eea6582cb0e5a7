package fraud

import (
	"sync/atomic"
	"time"
)

// Stats tracks process-wide decision counters. Counters are monotonically
// increasing for the life of the process; the invariant
// blocked <= flagged <= processed always holds because a blocked
// transaction is also counted as flagged.
type Stats struct {
	processed atomic.Uint64
	flagged   atomic.Uint64
	blocked   atomic.Uint64

	lastAnalysis atomic.Int64 // unix nanos, 0 until first record
}

// NewStats creates a fresh counter set. Construct once at process start
// and inject into the engine; tests get their own instance.
func NewStats() *Stats {
	return &Stats{}
}

// RecordOutcome updates the counters for one completed analysis.
func (s *Stats) RecordOutcome(decision Decision, flagged bool) {
	s.processed.Add(1)
	if flagged || decision == DecisionBlock {
		s.flagged.Add(1)
	}
	if decision == DecisionBlock {
		s.blocked.Add(1)
	}
	s.lastAnalysis.Store(time.Now().UnixNano())
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalProcessed uint64     `json:"totalProcessed"`
	TotalFlagged   uint64     `json:"totalFlagged"`
	TotalBlocked   uint64     `json:"totalBlocked"`
	LastAnalysis   *time.Time `json:"lastAnalysis,omitempty"`
}

// Snapshot returns a read-only copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalProcessed: s.processed.Load(),
		TotalFlagged:   s.flagged.Load(),
		TotalBlocked:   s.blocked.Load(),
	}
	if ns := s.lastAnalysis.Load(); ns > 0 {
		t := time.Unix(0, ns)
		snap.LastAnalysis = &t
	}
	return snap
}

// FraudRatePercent returns blocked/processed as a percentage.
func (s StatsSnapshot) FraudRatePercent() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.TotalBlocked) / float64(s.TotalProcessed) * 100
}
