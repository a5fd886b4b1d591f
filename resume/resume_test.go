package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func TestReconstruct_LastBotSpeaker(t *testing.T) {
	set := testutil.Roster(true, "A", "B")
	msgs := testutil.NewTranscriptBuilder().User("hi").Bot("A", "hello").Build()
	rec := testutil.NewRecordBuilder(9).Participants(set).Transcript(msgs).Model("llama3").Build()

	res, err := Reconstruct(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(9), res.ID)
	assert.Equal(t, "llama3", res.Model)
	assert.Equal(t, core.Cursor(2), res.Cursor)
	assert.True(t, res.NeedsExplicitContinue)
	assert.Len(t, res.Transcript, 2)
	assert.Equal(t, []string{"A", "B", core.UserSpeaker}, res.Participants.Names())
}

func TestReconstruct_HumanDue(t *testing.T) {
	set := testutil.Roster(true, "A", "B")
	msgs := testutil.NewTranscriptBuilder().User("hi").Bot("A", "x").Bot("B", "y").Build()
	rec := testutil.NewRecordBuilder(1).Participants(set).Transcript(msgs).Build()

	res, err := Reconstruct(rec)
	require.NoError(t, err)
	assert.Equal(t, core.HumanTurn, res.Cursor)
	assert.False(t, res.NeedsExplicitContinue)
}

func TestReconstruct_EmptyTranscript(t *testing.T) {
	tests := []struct {
		name     string
		set      core.ParticipantSet
		cursor   core.Cursor
		explicit bool
	}{
		{"user participates", testutil.Roster(true, "A"), core.HumanTurn, false},
		{"bots only", testutil.Roster(false, "A", "B"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecordBuilder(1).Participants(tt.set).Build()
			res, err := Reconstruct(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor, res.Cursor)
			assert.Equal(t, tt.explicit, res.NeedsExplicitContinue)
			assert.Empty(t, res.Transcript)
		})
	}
}

func TestReconstruct_RemovedSpeaker(t *testing.T) {
	// "C" was removed from the roster after speaking.
	msgs := testutil.NewTranscriptBuilder().Bot("A", "x").Bot("C", "y").Build()

	rec := testutil.NewRecordBuilder(1).Participants(testutil.Roster(false, "A", "B")).Transcript(msgs).Build()
	res, err := Reconstruct(rec)
	require.NoError(t, err)
	assert.Equal(t, core.Cursor(2), res.Cursor)

	rec = testutil.NewRecordBuilder(1).Participants(testutil.Roster(true, "A", "B")).Transcript(msgs).Build()
	res, err = Reconstruct(rec)
	require.NoError(t, err)
	assert.Equal(t, core.Cursor(1), res.Cursor)
}

func TestReconstruct_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  *core.SessionRecord
	}{
		{"nil record", nil},
		{"missing bots", testutil.NewRecordBuilder(1).RawParticipants(`{"userParticipates":true}`).Build()},
		{"participants not json", testutil.NewRecordBuilder(1).RawParticipants(`{bots`).Build()},
		{"duplicate bot names", testutil.NewRecordBuilder(1).RawParticipants(`{"bots":[{"name":"A"},{"name":"A"}],"userParticipates":true}`).Build()},
		{"transcript not json", testutil.NewRecordBuilder(1).RawTranscript(`[{"speaker":`).Build()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reconstruct(tt.rec)
			assert.Nil(t, res)
			assert.True(t, core.IsFormatError(err), "got %v", err)
		})
	}
}
