package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when a submitted message has no text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrCapacity is matched by every CapacityError.
	ErrCapacity = errors.New("message exceeds maximum length")
	// ErrNoParticipants is returned when no one can take the next turn.
	ErrNoParticipants = errors.New("no participant can take a turn")
	// ErrInvalidParticipant is returned for malformed bot entries.
	ErrInvalidParticipant = errors.New("invalid participant")
	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGenerationInFlight is returned when a turn is requested while one is generating.
	ErrGenerationInFlight = errors.New("a generation request is already in flight")
	// ErrNotUserTurn is returned when the human submits outside their slot.
	ErrNotUserTurn = errors.New("it is not the user's turn")
	// ErrNotBotTurn is returned when an AI turn is requested on the human's slot.
	ErrNotBotTurn = errors.New("it is not a bot's turn")
	// ErrNoSession is returned when a command needs an active session.
	ErrNoSession = errors.New("no active session")
	// ErrJobInFlight is returned when a single-flight job is already running.
	ErrJobInFlight = errors.New("a job of this kind is already in flight")
	// ErrNothingToAnalyze is returned when analysis is refreshed on an empty transcript.
	ErrNothingToAnalyze = errors.New("transcript is empty")
	// ErrTurnLimit is returned by TurnLimiter once its budget is spent.
	ErrTurnLimit = errors.New("turn limit reached")
	// ErrMissingBots is wrapped by FormatError when a participant payload has no bot list.
	ErrMissingBots = errors.New("participant payload has no bot list")
)

// CapacityError reports user input that exceeds the maximum message length.
type CapacityError struct {
	Limit int
	Got   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("message has %d characters, limit is %d", e.Got, e.Limit)
}

// Unwrap allows errors.Is(err, ErrCapacity).
func (e *CapacityError) Unwrap() error { return ErrCapacity }

// GenerationError wraps a failed call to the Generator.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error { return e.Err }

// FormatError reports a malformed persisted payload or analysis response.
type FormatError struct {
	What string
	Err  error
}

func (e *FormatError) Error() string { return fmt.Sprintf("malformed %s: %v", e.What, e.Err) }

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed session store write.
type PersistenceError struct {
	Op        string
	SessionID int64
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.SessionID == 0 {
		return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persist %s (session %d): %v", e.Op, e.SessionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error { return e.Err }
