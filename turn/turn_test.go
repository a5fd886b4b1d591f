package turn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/roundtable/core"
)

func roster(userParticipates bool, names ...string) core.ParticipantSet {
	set := core.ParticipantSet{UserParticipates: userParticipates}
	for _, n := range names {
		set.Bots = append(set.Bots, core.Bot{Name: n})
	}
	return set
}

// speakerFor returns the speaker identity that owns cursor c.
func speakerFor(c core.Cursor, set core.ParticipantSet) (string, bool) {
	if c.IsHuman() {
		return core.UserSpeaker, true
	}
	return set.Bots[c.BotIndex()].Name, false
}

func TestNext_WithUser_RoundRobin(t *testing.T) {
	set := roster(true, "A", "B")
	c := Initial(set)
	assert.Equal(t, core.Cursor(0), c)

	var seen []core.Cursor
	for i := 0; i < 9; i++ {
		speaker, isUser := speakerFor(c, set)
		c = Next(speaker, isUser, set)
		seen = append(seen, c)
	}
	assert.Equal(t, []core.Cursor{1, 2, 0, 1, 2, 0, 1, 2, 0}, seen)
}

func TestNext_BotsOnly_NeverHuman(t *testing.T) {
	set := roster(false, "A", "B")
	c := Initial(set)
	assert.Equal(t, core.Cursor(1), c)

	var seen []core.Cursor
	for i := 0; i < 6; i++ {
		speaker, isUser := speakerFor(c, set)
		c = Next(speaker, isUser, set)
		seen = append(seen, c)
	}
	assert.Equal(t, []core.Cursor{2, 1, 2, 1, 2, 1}, seen)
}

func TestNext_ZeroBots(t *testing.T) {
	empty := roster(false)
	assert.Equal(t, core.HumanTurn, Next("anyone", false, empty))
	assert.Equal(t, core.HumanTurn, Initial(empty))
	assert.True(t, Terminal(empty))

	humanOnly := roster(true)
	assert.Equal(t, core.HumanTurn, Next(core.UserSpeaker, true, humanOnly))
	assert.False(t, Terminal(humanOnly))
}

func TestNext_SingleBot(t *testing.T) {
	set := roster(false, "A")
	assert.Equal(t, core.Cursor(1), Next("A", false, set))
	assert.Equal(t, core.Cursor(1), Next("ghost", false, set))
}

func TestNext_UnrecognizedSpeaker(t *testing.T) {
	// B was removed from the roster after speaking.
	withUser := roster(true, "A", "C")
	assert.Equal(t, 0, Slot("B", false, withUser))
	assert.Equal(t, core.Cursor(1), Next("B", false, withUser))

	botsOnly := roster(false, "A", "C", "D")
	assert.Equal(t, 1, Slot("B", false, botsOnly))
	assert.Equal(t, core.Cursor(2), Next("B", false, botsOnly))
}

func TestNext_RosterEditMidSession(t *testing.T) {
	before := roster(true, "A", "B", "C")
	assert.Equal(t, core.Cursor(3), Next("B", false, before))

	// Reordered roster: B now sits first, so the next slot follows its new position.
	reordered := roster(true, "B", "A")
	assert.Equal(t, core.Cursor(2), Next("B", false, reordered))

	// A bot renamed to a name another bot used to have keeps pointing at the
	// current owner of that name.
	renamed := roster(true, "C", "A")
	assert.Equal(t, core.Cursor(2), Next("C", false, renamed))
}

func TestNext_HumanMessageWhenNotParticipating(t *testing.T) {
	set := roster(false, "A", "B")
	assert.Equal(t, core.Cursor(1), Next(core.UserSpeaker, true, set))
}

func TestAfter(t *testing.T) {
	set := roster(true, "A", "B")
	assert.Equal(t, core.HumanTurn, After(nil, set))

	last := core.NewBotMessage("A", "x")
	assert.Equal(t, core.Cursor(2), After(&last, set))
}

func TestClamp(t *testing.T) {
	set := roster(false, "A")
	assert.Equal(t, core.Cursor(1), Clamp(3, set))
	assert.Equal(t, core.Cursor(1), Clamp(core.HumanTurn, set))
	assert.Equal(t, core.Cursor(1), Clamp(1, set))

	withUser := roster(true, "A", "B")
	assert.Equal(t, core.Cursor(2), Clamp(2, withUser))
	assert.Equal(t, core.HumanTurn, Clamp(5, withUser))
}

func TestNext_StaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"A", "B", "C", "D", "E"}
	for i := 0; i < 500; i++ {
		n := rng.Intn(len(names) + 1)
		set := roster(rng.Intn(2) == 0, names[:n]...)
		speaker := names[rng.Intn(len(names))]
		c := Next(speaker, rng.Intn(3) == 0, set)
		assert.GreaterOrEqual(t, int(c), 0)
		assert.LessOrEqual(t, int(c), n)
		if !set.UserParticipates && n > 0 {
			assert.NotEqual(t, core.HumanTurn, c)
		}
	}
}
