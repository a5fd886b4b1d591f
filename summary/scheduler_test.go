package summary

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func messages(n int) []core.Message {
	return testutil.NewTranscriptBuilder().Rotate(n, "A", "B").Build()
}

func TestDecide_FullThreshold(t *testing.T) {
	cfg := DefaultConfig()

	assert.Nil(t, Decide(messages(11), core.SummaryState{}, cfg))

	job := Decide(messages(12), core.SummaryState{}, cfg)
	require.NotNil(t, job)
	assert.Equal(t, Full, job.Kind)
	assert.Equal(t, 12, job.Through)
	assert.Len(t, job.Messages, 12)
}

func TestDecide_IncrementalDelta(t *testing.T) {
	cfg := DefaultConfig()
	state := core.SummaryState{Cumulative: "so far", Through: 12}

	assert.Nil(t, Decide(messages(15), state, cfg))

	job := Decide(messages(16), state, cfg)
	require.NotNil(t, job)
	assert.Equal(t, Incremental, job.Kind)
	assert.Equal(t, "so far", job.Prior)
	assert.Equal(t, 16, job.Through)
	assert.Len(t, job.Messages, 4)
}

func TestDecide_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	transcript := messages(13)
	state := core.SummaryState{Cumulative: "x", Through: 12}

	first := Decide(transcript, state, cfg)
	second := Decide(transcript, state, cfg)
	assert.Nil(t, first)
	assert.Nil(t, second)

	due := messages(12)
	a := Decide(due, core.SummaryState{}, cfg)
	b := Decide(due, core.SummaryState{}, cfg)
	assert.Equal(t, a, b)
}

func TestScheduler_SingleFlight(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	job := s.Maybe(messages(12))
	require.NotNil(t, job)
	assert.NotEmpty(t, job.ID)
	assert.True(t, s.InFlight())

	// Triggers while in flight are dropped.
	assert.Nil(t, s.Maybe(messages(13)))
	assert.Nil(t, s.Maybe(messages(20)))

	require.NoError(t, s.Complete(job, "summary", nil))
	assert.False(t, s.InFlight())
	assert.Equal(t, core.SummaryState{Cumulative: "summary", Through: 12}, s.State())

	// Catch-up is recomputed against the current length.
	next := s.Maybe(messages(20))
	require.NotNil(t, next)
	assert.Equal(t, Incremental, next.Kind)
	assert.Len(t, next.Messages, 8)
}

func TestScheduler_FailureLeavesStateUnchanged(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	job := s.Maybe(messages(12))
	require.NotNil(t, job)

	err := s.Complete(job, "", errors.New("backend down"))
	var ge *core.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, core.SummaryState{}, s.State())

	job = s.Maybe(messages(12))
	require.NotNil(t, job, "same thresholds retry after a failure")
	err = s.Complete(job, "", nil)
	assert.ErrorIs(t, err, ErrEmptySummary)
	assert.Equal(t, core.SummaryState{}, s.State())
}

func TestScheduler_ThroughIsMonotonic(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Reset(core.SummaryState{Cumulative: "x", Through: 20})

	stale := &Job{Kind: Incremental, Through: 16}
	require.NoError(t, s.Complete(stale, "merged", nil))
	assert.Equal(t, 20, s.State().Through)
	assert.Equal(t, "merged", s.State().Cumulative)
}

func TestScheduler_MonotonicOverSequence(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	prev := 0
	for n := 0; n <= 60; n++ {
		if job := s.Maybe(messages(n)); job != nil {
			var err error
			if n%5 == 0 {
				err = errors.New("flaky")
			}
			_ = s.Complete(job, fmt.Sprintf("summary@%d", n), err)
		}
		through := s.State().Through
		assert.GreaterOrEqual(t, through, prev)
		assert.LessOrEqual(t, through, n)
		prev = through
	}
	assert.NotEmpty(t, s.State().Cumulative)
}

func TestContext(t *testing.T) {
	cfg := DefaultConfig()
	transcript := messages(30)

	noSummary := Context(core.SummaryState{}, transcript, cfg)
	assert.Empty(t, noSummary.Summary)
	assert.Len(t, noSummary.Recent, cfg.MaxRawHistory)
	assert.Equal(t, transcript[29].ID, noSummary.Recent[14].ID)

	caughtUp := Context(core.SummaryState{Cumulative: "s", Through: 30}, transcript, cfg)
	assert.Equal(t, "s", caughtUp.Summary)
	assert.Len(t, caughtUp.Recent, cfg.KeepRecentTurns)

	// Unsummarized messages beyond the recent window stay raw.
	lagging := Context(core.SummaryState{Cumulative: "s", Through: 24}, transcript, cfg)
	assert.Len(t, lagging.Recent, 6)

	// Bounded even if summarization fell far behind.
	farBehind := Context(core.SummaryState{Cumulative: "s", Through: 2}, transcript, cfg)
	assert.Len(t, farBehind.Recent, cfg.MaxRawHistory)

	short := Context(core.SummaryState{}, messages(3), cfg)
	assert.Len(t, short.Recent, 3)
}

type recordingGenerator struct {
	testutil.StubGenerator
	calls []string
}

func (g *recordingGenerator) SummarizeFull(_ context.Context, _ string, history []core.Message, _ []string) (string, error) {
	g.calls = append(g.calls, fmt.Sprintf("full:%d", len(history)))
	return "full", nil
}

func (g *recordingGenerator) SummarizeIncremental(_ context.Context, _ string, prior string, slice []core.Message, _ []string) (string, error) {
	g.calls = append(g.calls, fmt.Sprintf("incremental:%s:%d", prior, len(slice)))
	return "merged", nil
}

func TestRun_DispatchesByKind(t *testing.T) {
	gen := &recordingGenerator{}
	ctx := context.Background()

	out, err := Run(ctx, gen, "topic", nil, &Job{Kind: Full, Messages: messages(12)})
	require.NoError(t, err)
	assert.Equal(t, "full", out)

	out, err = Run(ctx, gen, "topic", nil, &Job{Kind: Incremental, Prior: "p", Messages: messages(4)})
	require.NoError(t, err)
	assert.Equal(t, "merged", out)
	assert.Equal(t, []string{"full:12", "incremental:p:4"}, gen.calls)
}

func TestConfig_Merge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{MinInitialFull: 6})
	assert.Equal(t, 6, cfg.MinInitialFull)
	assert.Equal(t, 4, cfg.MinIncrementalDelta)
}
