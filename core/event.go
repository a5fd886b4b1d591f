package core

import "time"

// EventType classifies a reported engine event.
type EventType string

const (
	// EventMessageAppended fires after a message enters the transcript.
	EventMessageAppended EventType = "message.appended"
	// EventTurnChanged fires when the turn cursor moves.
	EventTurnChanged EventType = "turn.changed"
	// EventSummaryUpdated fires after a summarization job is merged.
	EventSummaryUpdated EventType = "summary.updated"
	// EventAnalysisUpdated fires after an analysis result is accepted.
	EventAnalysisUpdated EventType = "analysis.updated"
	// EventSessionSaved fires after a persistence write succeeds.
	EventSessionSaved EventType = "session.saved"
	// EventChainStopped fires when auto-chaining halts before the human's turn.
	EventChainStopped EventType = "chain.stopped"
	// EventGenerationFailed reports a failed generation, summary or analysis call.
	EventGenerationFailed EventType = "failure.generation"
	// EventFormatFailed reports an unrepairable analysis response.
	EventFormatFailed EventType = "failure.format"
	// EventPersistenceFailed reports a failed session write.
	EventPersistenceFailed EventType = "failure.persistence"
)

// Event is a report emitted by the engine to the surrounding application.
// Recoverable failures are delivered as events rather than returned errors.
// After emission it should be treated as immutable.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID int64     `json:"session_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Cursor    Cursor    `json:"cursor"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(t EventType) Event {
	return Event{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// IsFailure reports whether the event carries a recoverable failure.
func (e Event) IsFailure() bool {
	switch e.Type {
	case EventGenerationFailed, EventFormatFailed, EventPersistenceFailed:
		return true
	default:
		return false
	}
}
