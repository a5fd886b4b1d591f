package core

import "context"

// Generator is the text generation backend. All calls are request/response
// and fallible; timeouts belong to the implementation.
type Generator interface {
	// Generate produces the next contribution for bot.
	Generate(ctx context.Context, bot Bot, history CompressedHistory, topic string) (string, error)
	// SummarizeFull compresses an entire transcript.
	SummarizeFull(ctx context.Context, topic string, history []Message, names []string) (string, error)
	// SummarizeIncremental merges newSlice into prior and returns one coherent summary.
	SummarizeIncremental(ctx context.Context, topic, prior string, newSlice []Message, names []string) (string, error)
	// Analyze returns raw JSON text describing the discussion.
	Analyze(ctx context.Context, topic string, history []Message, names []string) (string, error)
}
