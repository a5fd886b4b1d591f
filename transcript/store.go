// Package transcript holds the in-memory ordered message log of the active
// session.
package transcript

import (
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// Store is an append-only message log. Replace is reserved for resume.
// It is safe for concurrent access; reads return copies.
type Store struct {
	mu       sync.RWMutex
	messages []core.Message
}

// New creates a store seeded with msgs (copied).
func New(msgs ...core.Message) *Store {
	return &Store{messages: core.CloneMessages(msgs)}
}

// Append adds a message and returns the new transcript length.
func (s *Store) Append(m core.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages)
}

// Messages returns a copy of the full transcript.
func (s *Store) Messages() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message and whether one exists.
func (s *Store) Last() (core.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return core.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Slice returns a copy of messages[from:]; from is clamped to [0, Len].
func (s *Store) Slice(from int) []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from > len(s.messages) {
		from = len(s.messages)
	}
	out := make([]core.Message, len(s.messages)-from)
	copy(out, s.messages[from:])
	return out
}

// Replace swaps the whole transcript. Only resume uses this.
func (s *Store) Replace(msgs []core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = core.CloneMessages(msgs)
}
