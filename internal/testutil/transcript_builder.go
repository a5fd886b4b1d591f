package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// TranscriptBuilder provides a fluent helper for constructing transcripts in tests.
// Example:
//
//	msgs := NewTranscriptBuilder().User("hi").Bot("A", "hello").Rotate(6, "A", "B").Build()
type TranscriptBuilder struct {
	msgs []core.Message
	base time.Time
}

// NewTranscriptBuilder creates an empty builder with a fixed base timestamp.
func NewTranscriptBuilder() *TranscriptBuilder {
	return &TranscriptBuilder{base: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (b *TranscriptBuilder) add(m core.Message) *TranscriptBuilder {
	m.Timestamp = b.base.Add(time.Duration(len(b.msgs)) * time.Second)
	b.msgs = append(b.msgs, m)
	return b
}

// User appends a human message (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	return b.add(core.NewUserMessage(text))
}

// Bot appends a bot message (chainable).
func (b *TranscriptBuilder) Bot(name, text string) *TranscriptBuilder {
	return b.add(core.NewBotMessage(name, text))
}

// Rotate appends n bot messages cycling through names (chainable).
func (b *TranscriptBuilder) Rotate(n int, names ...string) *TranscriptBuilder {
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		b.Bot(name, fmt.Sprintf("%s says #%d", name, len(b.msgs)+1))
	}
	return b
}

// Build returns the messages.
func (b *TranscriptBuilder) Build() []core.Message {
	return core.CloneMessages(b.msgs)
}

// Roster builds a participant set from bot names.
func Roster(userParticipates bool, names ...string) core.ParticipantSet {
	set := core.ParticipantSet{Bots: []core.Bot{}, UserParticipates: userParticipates}
	for _, n := range names {
		set.Bots = append(set.Bots, core.Bot{Name: n, Role: "panelist", Description: n + " argues their view"})
	}
	return set
}
