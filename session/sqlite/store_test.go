package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Contract(t *testing.T) {
	testutil.RunSessionStoreSuite(t, func(t *testing.T) core.SessionStore {
		return openTemp(t)
	})
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	store, err := Open(path)
	require.NoError(t, err)
	msgs := testutil.NewTranscriptBuilder().User("hello").Bot("A", "hi").Build()
	rec := testutil.NewRecordBuilder(0).Participants(testutil.Roster(true, "A")).Transcript(msgs).Build()
	id, err := store.Insert(ctx, *rec)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	decoded, err := core.DecodeTranscript(got.Transcript)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestStore_Artifacts(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	id, err := store.Insert(ctx, *testutil.NewRecordBuilder(0).Build())
	require.NoError(t, err)

	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["a"]}`)))
	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["b"]}`)))

	arts, err := store.Artifacts(ctx, id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.JSONEq(t, `{"commonGround":["a"]}`, string(arts[0].Data))
	assert.Equal(t, id, arts[1].SessionID)
	assert.False(t, arts[1].CreatedAt.IsZero())

	require.NoError(t, store.Delete(ctx, id))
	arts, err = store.Artifacts(ctx, id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	assert.Empty(t, arts)
}
