package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeParticipants serializes a roster into its persisted JSON form.
func EncodeParticipants(p ParticipantSet) (json.RawMessage, error) {
	if p.Bots == nil {
		p.Bots = []Bot{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode participants: %w", err)
	}
	return b, nil
}

// DecodeParticipants parses a persisted roster. A payload without a "bots"
// array is rejected with a FormatError wrapping ErrMissingBots; malformed bot
// entries (see ParticipantSet.ValidateBots) with a FormatError wrapping
// ErrInvalidParticipant. A roster with no speakers decodes; turn order treats
// it as degenerate.
func DecodeParticipants(raw json.RawMessage) (ParticipantSet, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ParticipantSet{}, &FormatError{What: "participants", Err: err}
	}
	bots, ok := fields["bots"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(bots), []byte("[")) {
		return ParticipantSet{}, &FormatError{What: "participants", Err: ErrMissingBots}
	}
	var p ParticipantSet
	if err := json.Unmarshal(raw, &p); err != nil {
		return ParticipantSet{}, &FormatError{What: "participants", Err: err}
	}
	if err := p.ValidateBots(); err != nil {
		return ParticipantSet{}, &FormatError{What: "participants", Err: err}
	}
	if p.Bots == nil {
		p.Bots = []Bot{}
	}
	return p, nil
}

// EncodeTranscript serializes messages into their persisted JSON form.
func EncodeTranscript(msgs []Message) (json.RawMessage, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return b, nil
}

// DecodeTranscript parses a persisted transcript. An empty payload decodes to
// an empty transcript.
func DecodeTranscript(raw json.RawMessage) ([]Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Message{}, nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, &FormatError{What: "transcript", Err: err}
	}
	for i, m := range msgs {
		if m.Speaker == "" && !m.IsUser {
			return nil, &FormatError{What: "transcript", Err: fmt.Errorf("message %d has no speaker", i)}
		}
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// IsFormatError reports whether err is (or wraps) a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
