package core

import (
	"encoding/json"
	"time"
)

// SessionRecord is the durable unit persisted by a SessionStore. Participant
// and transcript payloads are stored as plain JSON text.
type SessionRecord struct {
	ID           int64           `json:"id"`
	Topic        string          `json:"topic"`
	Participants json.RawMessage `json:"participants"`
	Transcript   json.RawMessage `json:"messages"`
	Model        string          `json:"model,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	LastOpenedAt time.Time       `json:"lastOpenedAt,omitempty"`
}

// Snapshot is an in-memory copy of session state handed to persistence.
// It carries no id; the persistence queue owns the record identity.
type Snapshot struct {
	Topic        string
	Participants ParticipantSet
	Transcript   []Message
	Model        string
}

// Record encodes the snapshot into a SessionRecord without an id.
func (s Snapshot) Record() (SessionRecord, error) {
	participants, err := EncodeParticipants(s.Participants)
	if err != nil {
		return SessionRecord{}, err
	}
	transcript, err := EncodeTranscript(s.Transcript)
	if err != nil {
		return SessionRecord{}, err
	}
	now := time.Now().UTC()
	return SessionRecord{
		Topic:        s.Topic,
		Participants: participants,
		Transcript:   transcript,
		Model:        s.Model,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
