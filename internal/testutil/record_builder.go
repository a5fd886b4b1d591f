package testutil

import (
	"encoding/json"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// RecordBuilder helps construct session records with fluent chaining for tests.
// Example:
//
//	rec := NewRecordBuilder(7).Topic("t").Participants(set).Transcript(msgs).Build()
type RecordBuilder struct {
	rec core.SessionRecord
}

// NewRecordBuilder creates a builder for a record with the given id.
func NewRecordBuilder(id int64) *RecordBuilder {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	return &RecordBuilder{rec: core.SessionRecord{
		ID:           id,
		Topic:        "Should cities ban cars?",
		Participants: json.RawMessage(`{"bots":[],"userParticipates":true}`),
		Transcript:   json.RawMessage(`[]`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}}
}

// Topic sets the topic (chainable).
func (b *RecordBuilder) Topic(t string) *RecordBuilder { b.rec.Topic = t; return b }

// Model sets the model identifier (chainable).
func (b *RecordBuilder) Model(m string) *RecordBuilder { b.rec.Model = m; return b }

// Participants encodes and sets the roster (chainable).
func (b *RecordBuilder) Participants(p core.ParticipantSet) *RecordBuilder {
	raw, err := core.EncodeParticipants(p)
	if err != nil {
		panic(err)
	}
	b.rec.Participants = raw
	return b
}

// RawParticipants sets the participant payload verbatim (chainable).
func (b *RecordBuilder) RawParticipants(raw string) *RecordBuilder {
	b.rec.Participants = json.RawMessage(raw)
	return b
}

// Transcript encodes and sets the messages (chainable).
func (b *RecordBuilder) Transcript(msgs []core.Message) *RecordBuilder {
	raw, err := core.EncodeTranscript(msgs)
	if err != nil {
		panic(err)
	}
	b.rec.Transcript = raw
	return b
}

// RawTranscript sets the transcript payload verbatim (chainable).
func (b *RecordBuilder) RawTranscript(raw string) *RecordBuilder {
	b.rec.Transcript = json.RawMessage(raw)
	return b
}

// Build returns a pointer to a copy of the record.
func (b *RecordBuilder) Build() *core.SessionRecord {
	rec := b.rec
	return &rec
}
