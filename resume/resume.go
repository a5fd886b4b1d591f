// Package resume rebuilds engine state from a persisted session record.
package resume

import (
	"errors"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/turn"
)

// Result is the reconstructed state of a session.
type Result struct {
	ID           int64
	Topic        string
	Model        string
	Participants core.ParticipantSet
	Transcript   []core.Message
	Cursor       core.Cursor
	// NeedsExplicitContinue is set whenever a bot is due to speak. The engine
	// never generates purely because a session was reopened.
	NeedsExplicitContinue bool
}

// Reconstruct decodes rec and derives the turn cursor from its last message.
// Decode failures are returned as *core.FormatError and no partial result is
// produced.
func Reconstruct(rec *core.SessionRecord) (*Result, error) {
	if rec == nil {
		return nil, &core.FormatError{What: "session record", Err: errors.New("record is nil")}
	}

	set, err := core.DecodeParticipants(rec.Participants)
	if err != nil {
		return nil, err
	}

	msgs, err := core.DecodeTranscript(rec.Transcript)
	if err != nil {
		return nil, err
	}

	var last *core.Message
	if len(msgs) > 0 {
		last = &msgs[len(msgs)-1]
	}
	cursor := turn.After(last, set)

	return &Result{
		ID:                    rec.ID,
		Topic:                 rec.Topic,
		Model:                 rec.Model,
		Participants:          set,
		Transcript:            msgs,
		Cursor:                cursor,
		NeedsExplicitContinue: !cursor.IsHuman() && !turn.Terminal(set),
	}, nil
}
