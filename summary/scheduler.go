// Package summary decides when to compress the transcript into a running
// summary and builds the bounded context handed to generation requests.
//
// A full summarization fires once, when no summary exists and the transcript
// reaches MinInitialFull messages. Afterwards an incremental job fires
// whenever at least MinIncrementalDelta messages are not yet covered; it sends
// only the unsummarized suffix plus the current summary and replaces the
// summary with the merged result.
package summary

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// Config holds the summarization thresholds.
type Config struct {
	MinInitialFull      int `json:"min_initial_full" mapstructure:"min_initial_full"`
	MinIncrementalDelta int `json:"min_incremental_delta" mapstructure:"min_incremental_delta"`
	KeepRecentTurns     int `json:"keep_recent_turns" mapstructure:"keep_recent_turns"`
	MaxRawHistory       int `json:"max_raw_history" mapstructure:"max_raw_history"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinInitialFull:      12,
		MinIncrementalDelta: 4,
		KeepRecentTurns:     4,
		MaxRawHistory:       15,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MinInitialFull > 0 {
		c.MinInitialFull = source.MinInitialFull
	}
	if source.MinIncrementalDelta > 0 {
		c.MinIncrementalDelta = source.MinIncrementalDelta
	}
	if source.KeepRecentTurns > 0 {
		c.KeepRecentTurns = source.KeepRecentTurns
	}
	if source.MaxRawHistory > 0 {
		c.MaxRawHistory = source.MaxRawHistory
	}
}

// Kind distinguishes full from incremental jobs.
type Kind int

const (
	// Full summarizes the entire transcript.
	Full Kind = iota
	// Incremental merges the unsummarized suffix into the prior summary.
	Incremental
)

func (k Kind) String() string {
	if k == Full {
		return "full"
	}
	return "incremental"
}

// Job is a summarization request. Through is the transcript length the job
// covers once merged.
type Job struct {
	ID       string
	Kind     Kind
	Through  int
	Prior    string
	Messages []core.Message
}

// ErrEmptySummary is returned when the generator produced no text.
var ErrEmptySummary = errors.New("generator returned an empty summary")

// Decide returns the job the current transcript and state call for, or nil.
// It has no side effects and returns the same decision for the same inputs.
func Decide(transcript []core.Message, state core.SummaryState, cfg Config) *Job {
	n := len(transcript)
	if state.Cumulative == "" {
		if n < cfg.MinInitialFull {
			return nil
		}
		return &Job{Kind: Full, Through: n, Messages: core.CloneMessages(transcript)}
	}
	from := state.Through
	if from > n {
		from = n
	}
	if n-from < cfg.MinIncrementalDelta {
		return nil
	}
	return &Job{
		Kind:     Incremental,
		Through:  n,
		Prior:    state.Cumulative,
		Messages: core.CloneMessages(transcript[from:]),
	}
}

// Scheduler wraps Decide with the single-flight rule and owns the state.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	state    core.SummaryState
	inFlight bool
}

// NewScheduler creates a scheduler with an empty summary.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Maybe returns a job to run, or nil if none is due or one is already in flight.
// A returned job must be finished with Complete.
func (s *Scheduler) Maybe(transcript []core.Message) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil
	}
	job := Decide(transcript, s.state, s.cfg)
	if job == nil {
		return nil
	}
	job.ID = core.NewID()
	s.inFlight = true
	return job
}

// Complete merges a finished job. On error (or empty text) the state is left
// unchanged so the same thresholds retry on the next qualifying message.
func (s *Scheduler) Complete(job *Job, text string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err == nil && text == "" {
		err = ErrEmptySummary
	}
	if err != nil {
		return &core.GenerationError{Op: "summarize " + job.Kind.String(), Err: err}
	}
	s.state.Cumulative = text
	if job.Through > s.state.Through {
		s.state.Through = job.Through
	}
	return nil
}

// Run executes a job against gen.
func Run(ctx context.Context, gen core.Generator, topic string, names []string, job *Job) (string, error) {
	if job.Kind == Full {
		return gen.SummarizeFull(ctx, topic, job.Messages, names)
	}
	return gen.SummarizeIncremental(ctx, topic, job.Prior, job.Messages, names)
}

// State returns a copy of the current summary state.
func (s *Scheduler) State() core.SummaryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a job is outstanding.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Reset replaces the state, e.g. after resume, and forgets any in-flight job.
func (s *Scheduler) Reset(state core.SummaryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.inFlight = false
}

// Context builds the compressed history for a generation request from the
// scheduler's current state.
func (s *Scheduler) Context(transcript []core.Message) core.CompressedHistory {
	return Context(s.State(), transcript, s.cfg)
}

// Context returns the summary plus the most recent KeepRecentTurns raw
// messages. Messages not yet covered by the summary are kept raw as well, up
// to MaxRawHistory. Without a summary the last MaxRawHistory messages are used.
func Context(state core.SummaryState, transcript []core.Message, cfg Config) core.CompressedHistory {
	n := len(transcript)
	start := n - cfg.MaxRawHistory
	if state.Cumulative != "" {
		start = n - cfg.KeepRecentTurns
		if state.Through < start {
			start = state.Through
		}
		if floor := n - cfg.MaxRawHistory; start < floor {
			start = floor
		}
	}
	if start < 0 {
		start = 0
	}
	return core.CompressedHistory{
		Summary: state.Cumulative,
		Recent:  core.CloneMessages(transcript[start:]),
	}
}
