package core

import (
	"fmt"
	"strings"
)

// Bot is an automated participant.
type Bot struct {
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role" yaml:"role"`
	Description string `json:"description" yaml:"description"`
}

// ParticipantSet is the ordered roster of bots plus whether the human takes turns.
type ParticipantSet struct {
	Bots             []Bot `json:"bots" yaml:"bots"`
	UserParticipates bool  `json:"userParticipates" yaml:"user_participates"`
}

// Validate checks the bot entries (see ValidateBots) and rejects a roster in
// which no one can speak.
func (p ParticipantSet) Validate() error {
	if err := p.ValidateBots(); err != nil {
		return err
	}
	if len(p.Bots) == 0 && !p.UserParticipates {
		return ErrNoParticipants
	}
	return nil
}

// ValidateBots rejects empty names, duplicate names and bots named like the
// human speaker. Speaker lookup is by name, so any of these would make turn
// order ambiguous.
func (p ParticipantSet) ValidateBots() error {
	seen := make(map[string]struct{}, len(p.Bots))
	for i, b := range p.Bots {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return fmt.Errorf("bot %d: %w", i, ErrInvalidParticipant)
		}
		if strings.EqualFold(name, UserSpeaker) {
			return fmt.Errorf("bot %q uses the reserved human speaker name: %w", name, ErrInvalidParticipant)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate bot name %q: %w", name, ErrInvalidParticipant)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// BotCount returns the number of bots.
func (p ParticipantSet) BotCount() int { return len(p.Bots) }

// Index returns the position of the named bot, or -1.
func (p ParticipantSet) Index(name string) int {
	for i, b := range p.Bots {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Names lists every speaker, the human last when participating.
func (p ParticipantSet) Names() []string {
	names := make([]string, 0, len(p.Bots)+1)
	for _, b := range p.Bots {
		names = append(names, b.Name)
	}
	if p.UserParticipates {
		names = append(names, UserSpeaker)
	}
	return names
}

// Clone returns a deep copy.
func (p ParticipantSet) Clone() ParticipantSet {
	bots := make([]Bot, len(p.Bots))
	copy(bots, p.Bots)
	return ParticipantSet{Bots: bots, UserParticipates: p.UserParticipates}
}

// Cursor identifies whose turn it is: 0 is the human, k > 0 is bot k-1.
type Cursor int

// HumanTurn is the cursor value for the human's slot.
const HumanTurn Cursor = 0

// IsHuman reports whether the cursor points at the human slot.
func (c Cursor) IsHuman() bool { return c == HumanTurn }

// BotIndex returns the bot index the cursor points at, or -1 for the human.
func (c Cursor) BotIndex() int { return int(c) - 1 }

// SummaryState is the running compressed summary of the transcript.
type SummaryState struct {
	Cumulative string `json:"cumulative"`
	Through    int    `json:"through"`
}

// AnalysisState holds the latest accepted analysis and the transcript length
// the most recent attempt covered.
type AnalysisState struct {
	Result            *Analysis `json:"result,omitempty"`
	LastAnalyzedCount int       `json:"lastAnalyzedCount"`
}

// CompressedHistory is the bounded context handed to a generation request.
type CompressedHistory struct {
	Summary string
	Recent  []Message
}
