// Package analysis decides when to re-run discussion analysis and validates
// the structured result.
//
// Analysis fires whenever the transcript has reached a positive multiple of
// the configured interval that has not been attempted yet. When several
// messages land between two evaluations the run covers the largest such
// multiple, so batching evaluations never skips one. Every completed attempt
// marks its length as analyzed, successful or not, so a persistently failing
// backend is not retried at the same length.
package analysis

import (
	"context"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// Config holds the analysis cadence.
type Config struct {
	Interval int `json:"interval" mapstructure:"interval"`
}

// DefaultConfig returns the default cadence (every 3 messages).
func DefaultConfig() Config {
	return Config{Interval: 3}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Interval > 0 {
		c.Interval = source.Interval
	}
}

// Due returns the transcript length to analyze: the largest multiple of the
// interval not exceeding length and above LastAnalyzedCount. It returns 0
// when nothing is due.
func Due(length int, state core.AnalysisState, cfg Config) int {
	if cfg.Interval <= 0 || length < cfg.Interval {
		return 0
	}
	attempt := length - length%cfg.Interval
	if attempt <= state.LastAnalyzedCount {
		return 0
	}
	return attempt
}

// ShouldRun reports whether a transcript of the given length is due for analysis.
func ShouldRun(length int, state core.AnalysisState, cfg Config) bool {
	return Due(length, state, cfg) > 0
}

// Scheduler wraps ShouldRun with the single-flight rule and owns the state.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	state    core.AnalysisState
	inFlight bool
}

// NewScheduler creates a scheduler with no result.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Maybe claims an analysis run for a transcript of the given length and
// returns the prefix length to analyze (see Due). It returns false when none
// is due or one is already in flight.
func (s *Scheduler) Maybe(length int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return 0, false
	}
	attempt := Due(length, s.state, s.cfg)
	if attempt == 0 {
		return 0, false
	}
	s.inFlight = true
	return attempt, true
}

// Refresh claims a run regardless of the interval gate.
func (s *Scheduler) Refresh(length int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return 0, core.ErrJobInFlight
	}
	if length <= 0 {
		return 0, core.ErrNothingToAnalyze
	}
	s.inFlight = true
	return length, nil
}

// Complete finishes the run claimed for attempt. A call error or an
// unrepairable response leaves the result unchanged; either way the attempted
// length is recorded.
func (s *Scheduler) Complete(attempt int, raw string, err error) (*core.Analysis, error) {
	var (
		result *core.Analysis
		outErr error
	)
	if err != nil {
		outErr = &core.GenerationError{Op: "analyze", Err: err}
	} else {
		result, outErr = Parse(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if attempt > s.state.LastAnalyzedCount {
		s.state.LastAnalyzedCount = attempt
	}
	if outErr != nil {
		return nil, outErr
	}
	s.state.Result = result
	return result, nil
}

// Run executes an analysis call against gen.
func Run(ctx context.Context, gen core.Generator, topic string, names []string, history []core.Message) (string, error) {
	return gen.Analyze(ctx, topic, history, names)
}

// State returns a copy of the current analysis state.
func (s *Scheduler) State() core.AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a run is outstanding.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Reset replaces the state, e.g. after resume, and forgets any in-flight run.
func (s *Scheduler) Reset(state core.AnalysisState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.inFlight = false
}
