package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func TestInMemoryStore_Contract(t *testing.T) {
	testutil.RunSessionStoreSuite(t, func(*testing.T) core.SessionStore {
		return NewInMemoryStore()
	})
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := testutil.NewRecordBuilder(0).Participants(testutil.Roster(true, "A")).Build()
	id, err := store.Insert(ctx, *rec)
	require.NoError(t, err)

	rec.Participants[0] = 'X'
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	got.Transcript[0] = 'X'

	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, json.Valid(again.Participants))
	assert.True(t, json.Valid(again.Transcript))
}

func TestInMemoryStore_Artifacts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	id, err := store.Insert(ctx, *testutil.NewRecordBuilder(0).Build())
	require.NoError(t, err)

	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["a"]}`)))
	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["b"]}`)))

	arts, err := store.Artifacts(id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.JSONEq(t, `{"commonGround":["b"]}`, string(arts[1].Data))

	require.NoError(t, store.Delete(ctx, id))
	arts, err = store.Artifacts(id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestCanonicalParticipants(t *testing.T) {
	a, err := CanonicalParticipants(json.RawMessage(`{"userParticipates":false,"bots":[{"name":"A"}]}`))
	require.NoError(t, err)
	b, err := CanonicalParticipants(json.RawMessage(`{"bots":[{"description":"","name":"A","role":""}],"userParticipates":false}`))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	_, err = CanonicalParticipants(json.RawMessage(`{"userParticipates":true}`))
	assert.True(t, core.IsFormatError(err))
}
