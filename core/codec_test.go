package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipants_RoundTrip(t *testing.T) {
	in := ParticipantSet{
		Bots:             []Bot{{Name: "A", Role: "skeptic", Description: "doubts everything"}},
		UserParticipates: true,
	}
	raw, err := EncodeParticipants(in)
	require.NoError(t, err)

	out, err := DecodeParticipants(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeParticipants_MissingBots(t *testing.T) {
	for _, raw := range []string{
		`{"userParticipates":true}`,
		`{"bots":null,"userParticipates":true}`,
		`{"bots":"A,B"}`,
	} {
		_, err := DecodeParticipants(json.RawMessage(raw))
		require.Error(t, err, raw)
		assert.True(t, IsFormatError(err), raw)
		assert.ErrorIs(t, err, ErrMissingBots, raw)
	}

	_, err := DecodeParticipants(json.RawMessage(`not json`))
	assert.True(t, IsFormatError(err))
}

func TestDecodeParticipants_EmptyBotList(t *testing.T) {
	p, err := DecodeParticipants(json.RawMessage(`{"bots":[],"userParticipates":true}`))
	require.NoError(t, err)
	assert.NotNil(t, p.Bots)
	assert.Empty(t, p.Bots)
}

func TestTranscript_RoundTrip(t *testing.T) {
	msgs := []Message{NewUserMessage("hi"), NewBotMessage("A", "hello")}
	raw, err := EncodeTranscript(msgs)
	require.NoError(t, err)

	out, err := DecodeTranscript(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, msgs[0].Text, out[0].Text)
	assert.True(t, out[0].IsUser)
	assert.Equal(t, "A", out[1].Speaker)
	assert.True(t, msgs[1].Timestamp.Equal(out[1].Timestamp))
}

func TestDecodeTranscript_Edges(t *testing.T) {
	out, err := DecodeTranscript(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = DecodeTranscript(json.RawMessage(`{"speaker":"A"}`))
	assert.True(t, IsFormatError(err))

	_, err = DecodeTranscript(json.RawMessage(`[{"text":"orphan"}]`))
	assert.True(t, IsFormatError(err))
}

func TestSnapshot_Record(t *testing.T) {
	snap := Snapshot{Topic: "t", Participants: ParticipantSet{Bots: []Bot{{Name: "A"}}}, Model: "m"}
	rec, err := snap.Record()
	require.NoError(t, err)
	assert.Zero(t, rec.ID)
	assert.Equal(t, "t", rec.Topic)
	assert.JSONEq(t, `[]`, string(rec.Transcript))
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestDecodeParticipants_RejectsMalformedBots(t *testing.T) {
	for name, raw := range map[string]string{
		"duplicate":  `{"bots":[{"name":"Alice"},{"name":"Alice"}],"userParticipates":true}`,
		"empty name": `{"bots":[{"name":" "}],"userParticipates":false}`,
		"reserved":   `{"bots":[{"name":"user"}],"userParticipates":true}`,
	} {
		_, err := DecodeParticipants(json.RawMessage(raw))
		require.Error(t, err, name)
		assert.True(t, IsFormatError(err), name)
		assert.ErrorIs(t, err, ErrInvalidParticipant, name)
	}

	p, err := DecodeParticipants(json.RawMessage(`{"bots":[],"userParticipates":false}`))
	require.NoError(t, err)
	assert.Empty(t, p.Bots)
}
