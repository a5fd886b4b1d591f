// Package turn computes whose turn is next in a discussion.
//
// Slots are numbered 0..N for N bots: slot 0 is the human and slot k is bot
// k-1. When the human participates, turns cycle through every slot in order.
// Otherwise only the bot slots 1..N cycle and slot 0 is never produced, except
// for the degenerate zero-bot roster, which yields 0 and must be treated as
// terminal by the caller.
package turn

import "github.com/hupe1980/roundtable/core"

// Slot maps a speaker to its slot. Unrecognized speakers (e.g. a bot removed
// mid-session) map to slot 1 when the human does not participate, else slot 0.
func Slot(speaker string, isUser bool, set core.ParticipantSet) int {
	if isUser {
		return 0
	}
	if i := set.Index(speaker); i >= 0 {
		return i + 1
	}
	if !set.UserParticipates {
		return 1
	}
	return 0
}

// Next returns the cursor following the given speaker.
func Next(speaker string, isUser bool, set core.ParticipantSet) core.Cursor {
	return advance(Slot(speaker, isUser, set), set)
}

// After returns the cursor following the last message, or Initial when the
// transcript is empty.
func After(last *core.Message, set core.ParticipantSet) core.Cursor {
	if last == nil {
		return Initial(set)
	}
	return Next(last.Speaker, last.IsUser, set)
}

// Initial returns the cursor for an empty transcript: the human first when
// participating, else the first bot.
func Initial(set core.ParticipantSet) core.Cursor {
	if set.UserParticipates || set.BotCount() == 0 {
		return core.HumanTurn
	}
	return 1
}

// Terminal reports whether no one can ever speak with this roster.
func Terminal(set core.ParticipantSet) bool {
	return set.BotCount() == 0 && !set.UserParticipates
}

// Clamp brings a cursor back into [0, N] after a roster change, keeping the
// human slot off-limits when the human does not participate.
func Clamp(c core.Cursor, set core.ParticipantSet) core.Cursor {
	n := set.BotCount()
	if int(c) < 0 || int(c) > n {
		return Initial(set)
	}
	if c.IsHuman() && !set.UserParticipates {
		return Initial(set)
	}
	return c
}

func advance(slot int, set core.ParticipantSet) core.Cursor {
	n := set.BotCount()
	if set.UserParticipates {
		return core.Cursor((slot + 1) % (n + 1))
	}
	if n == 0 {
		return core.HumanTurn
	}
	return core.Cursor(slot%n + 1)
}
