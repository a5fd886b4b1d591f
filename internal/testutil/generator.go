package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/roundtable/core"
)

// StubGenerator is a deterministic core.Generator. Each hook is optional; a nil
// hook produces a canned response. Calls are counted and safe for concurrent use.
type StubGenerator struct {
	GenerateFn             func(ctx context.Context, bot core.Bot, history core.CompressedHistory, topic string) (string, error)
	SummarizeFullFn        func(ctx context.Context, topic string, history []core.Message, names []string) (string, error)
	SummarizeIncrementalFn func(ctx context.Context, topic, prior string, slice []core.Message, names []string) (string, error)
	AnalyzeFn              func(ctx context.Context, topic string, history []core.Message, names []string) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ core.Generator = (*StubGenerator)(nil)

func (g *StubGenerator) count(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	g.calls[op]++
}

// Calls returns how many times op ("generate", "full", "incremental", "analyze") ran.
func (g *StubGenerator) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Generate implements core.Generator.
func (g *StubGenerator) Generate(ctx context.Context, bot core.Bot, history core.CompressedHistory, topic string) (string, error) {
	g.count("generate")
	if g.GenerateFn != nil {
		return g.GenerateFn(ctx, bot, history, topic)
	}
	return fmt.Sprintf("%s on %s (%d recent)", bot.Name, topic, len(history.Recent)), nil
}

// SummarizeFull implements core.Generator.
func (g *StubGenerator) SummarizeFull(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	g.count("full")
	if g.SummarizeFullFn != nil {
		return g.SummarizeFullFn(ctx, topic, history, names)
	}
	return fmt.Sprintf("summary of %d messages", len(history)), nil
}

// SummarizeIncremental implements core.Generator.
func (g *StubGenerator) SummarizeIncremental(ctx context.Context, topic, prior string, slice []core.Message, names []string) (string, error) {
	g.count("incremental")
	if g.SummarizeIncrementalFn != nil {
		return g.SummarizeIncrementalFn(ctx, topic, prior, slice, names)
	}
	return fmt.Sprintf("%s + %d", prior, len(slice)), nil
}

// Analyze implements core.Generator.
func (g *StubGenerator) Analyze(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	g.count("analyze")
	if g.AnalyzeFn != nil {
		return g.AnalyzeFn(ctx, topic, history, names)
	}
	return `{"mainPoints":[{"point":"cost"}],"participantStances":[],"conflicts":[],"commonGround":["safety"],"unexploredAreas":[]}`, nil
}

// MockGenerator is a testify mock of core.Generator for expectation-style tests.
type MockGenerator struct {
	mock.Mock
}

var _ core.Generator = (*MockGenerator)(nil)

// Generate implements core.Generator.
func (m *MockGenerator) Generate(ctx context.Context, bot core.Bot, history core.CompressedHistory, topic string) (string, error) {
	args := m.Called(ctx, bot, history, topic)
	return args.String(0), args.Error(1)
}

// SummarizeFull implements core.Generator.
func (m *MockGenerator) SummarizeFull(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	args := m.Called(ctx, topic, history, names)
	return args.String(0), args.Error(1)
}

// SummarizeIncremental implements core.Generator.
func (m *MockGenerator) SummarizeIncremental(ctx context.Context, topic, prior string, slice []core.Message, names []string) (string, error) {
	args := m.Called(ctx, topic, prior, slice, names)
	return args.String(0), args.Error(1)
}

// Analyze implements core.Generator.
func (m *MockGenerator) Analyze(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	args := m.Called(ctx, topic, history, names)
	return args.String(0), args.Error(1)
}
