package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

// RunSessionStoreSuite exercises the core.SessionStore contract against a
// fresh store returned by newStore for each subtest.
func RunSessionStoreSuite(t *testing.T, newStore func(t *testing.T) core.SessionStore) {
	t.Helper()
	ctx := context.Background()

	record := func(topic string, set core.ParticipantSet, msgs []core.Message) core.SessionRecord {
		return *NewRecordBuilder(0).Topic(topic).Participants(set).Transcript(msgs).Model("test-model").Build()
	}

	t.Run("InsertAssignsIDs", func(t *testing.T) {
		store := newStore(t)
		set := Roster(true, "A")
		id1, err := store.Insert(ctx, record("one", set, nil))
		require.NoError(t, err)
		id2, err := store.Insert(ctx, record("two", set, nil))
		require.NoError(t, err)
		assert.Positive(t, id1)
		assert.NotEqual(t, id1, id2)

		got, err := store.Get(ctx, id2)
		require.NoError(t, err)
		assert.Equal(t, id2, got.ID)
		assert.Equal(t, "two", got.Topic)
		assert.Equal(t, "test-model", got.Model)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("RoundTripsPayloads", func(t *testing.T) {
		store := newStore(t)
		set := Roster(false, "A", "B")
		msgs := NewTranscriptBuilder().Bot("A", "first").Bot("B", "second \"quoted\"").Build()
		id, err := store.Insert(ctx, record("t", set, msgs))
		require.NoError(t, err)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		gotSet, err := core.DecodeParticipants(got.Participants)
		require.NoError(t, err)
		assert.Equal(t, set, gotSet)
		gotMsgs, err := core.DecodeTranscript(got.Transcript)
		require.NoError(t, err)
		require.Len(t, gotMsgs, 2)
		assert.Equal(t, msgs[1].Text, gotMsgs[1].Text)
		assert.Equal(t, msgs[1].ID, gotMsgs[1].ID)
		assert.True(t, msgs[1].Timestamp.Equal(gotMsgs[1].Timestamp))
	})

	t.Run("UpdatesInPlace", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Insert(ctx, record("t", Roster(true, "A"), nil))
		require.NoError(t, err)
		before, err := store.Get(ctx, id)
		require.NoError(t, err)

		msgs := NewTranscriptBuilder().User("hi").Build()
		tr, _ := core.EncodeTranscript(msgs)
		require.NoError(t, store.UpdateTranscript(ctx, id, tr))
		ps, _ := core.EncodeParticipants(Roster(true, "A", "B"))
		require.NoError(t, store.UpdateParticipants(ctx, id, ps))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		gotMsgs, _ := core.DecodeTranscript(got.Transcript)
		assert.Len(t, gotMsgs, 1)
		gotSet, _ := core.DecodeParticipants(got.Participants)
		assert.Equal(t, 2, gotSet.BotCount())
		assert.False(t, got.UpdatedAt.Before(before.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(before.CreatedAt))
	})

	t.Run("UnknownID", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, 404)
		assert.ErrorIs(t, err, core.ErrSessionNotFound)
		assert.ErrorIs(t, store.UpdateTranscript(ctx, 404, json.RawMessage(`[]`)), core.ErrSessionNotFound)
		assert.ErrorIs(t, store.UpdateParticipants(ctx, 404, json.RawMessage(`{"bots":[]}`)), core.ErrSessionNotFound)
		assert.ErrorIs(t, store.TouchLastOpened(ctx, 404), core.ErrSessionNotFound)
		assert.ErrorIs(t, store.Delete(ctx, 404), core.ErrSessionNotFound)
		assert.ErrorIs(t, store.AppendAnalysisArtifact(ctx, 404, core.ArtifactKindAnalysis, []byte(`{}`)), core.ErrSessionNotFound)
	})

	t.Run("TouchLastOpened", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Insert(ctx, record("t", Roster(true, "A"), nil))
		require.NoError(t, err)
		require.NoError(t, store.TouchLastOpened(ctx, id))
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), got.LastOpenedAt, time.Minute)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		store := newStore(t)
		set := Roster(true, "A")
		id1, _ := store.Insert(ctx, record("one", set, nil))
		id2, _ := store.Insert(ctx, record("two", set, nil))
		require.NoError(t, store.AppendAnalysisArtifact(ctx, id1, core.ArtifactKindAnalysis, []byte(`{"commonGround":["x"]}`)))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		require.NoError(t, store.Delete(ctx, id1))
		all, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, id2, all[0].ID)
	})

	t.Run("FindExisting", func(t *testing.T) {
		store := newStore(t)
		set := Roster(true, "A", "B")
		id, err := store.Insert(ctx, record("cars", set, nil))
		require.NoError(t, err)
		_, err = store.Insert(ctx, record("cars", Roster(true, "A"), nil))
		require.NoError(t, err)

		// Same roster, different key order and whitespace.
		raw := json.RawMessage(`{ "userParticipates": true, "bots": [
			{"name":"A","role":"panelist","description":"A argues their view"},
			{"name":"B","role":"panelist","description":"B argues their view"}]}`)
		found, err := store.FindExisting(ctx, "cars", raw)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, id, found.ID)

		none, err := store.FindExisting(ctx, "bikes", raw)
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}
