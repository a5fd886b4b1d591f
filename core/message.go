package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// UserSpeaker is the speaker name recorded for messages written by the human.
const UserSpeaker = "User"

// MaxMessageLength bounds the number of runes a human may submit in one message.
const MaxMessageLength = 2000

// Message is one contribution to the discussion. It is immutable once
// appended; its index in the transcript is its identity for scheduling.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBotMessage creates a message authored by the named bot.
func NewBotMessage(speaker, text string) Message {
	return Message{ID: NewID(), Speaker: speaker, Text: text, Timestamp: time.Now().UTC()}
}

// NewUserMessage creates a message authored by the human participant.
func NewUserMessage(text string) Message {
	return Message{ID: NewID(), Speaker: UserSpeaker, Text: text, IsUser: true, Timestamp: time.Now().UTC()}
}

// NewID generates a new unique identifier for messages and jobs.
func NewID() string { return uuid.NewString() }

// ValidateUserText trims text and checks it against MaxMessageLength.
func ValidateUserText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxMessageLength {
		return "", &CapacityError{Limit: MaxMessageLength, Got: n}
	}
	return trimmed, nil
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
