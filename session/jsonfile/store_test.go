package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/testutil"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	return store
}

func TestStore_Contract(t *testing.T) {
	testutil.RunSessionStoreSuite(t, func(t *testing.T) core.SessionStore {
		return openTemp(t)
	})
}

func TestStore_ReopenKeepsDataAndIDs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written before the first change")

	msgs := testutil.NewTranscriptBuilder().User("hello").Bot("A", "hi").Build()
	rec := testutil.NewRecordBuilder(0).Participants(testutil.Roster(true, "A")).Transcript(msgs).Build()
	id1, err := store.Insert(ctx, *rec)
	require.NoError(t, err)
	id2, err := store.Insert(ctx, *rec)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id2))

	store, err = Open(path)
	require.NoError(t, err)

	got, err := store.Get(ctx, id1)
	require.NoError(t, err)
	decoded, err := core.DecodeTranscript(got.Transcript)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)

	// Deleted ids are not reused.
	id3, err := store.Insert(ctx, *rec)
	require.NoError(t, err)
	assert.Greater(t, id3, id2)
}

func TestStore_DocumentLayout(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	_, err := store.Insert(ctx, *testutil.NewRecordBuilder(0).Topic("cars").Build())
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `2`, string(doc["next_id"]))
	assert.Contains(t, string(doc["sessions"]), `"topic": "cars"`)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessions": [`), 0o600))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrCorrupt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"sessions": [`, string(data), "a corrupt file is left alone")
}

func TestStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	store, err := Open(path)
	require.NoError(t, err)
	id, err := store.Insert(context.Background(), *testutil.NewRecordBuilder(0).Build())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestStore_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	id, err := store.Insert(ctx, *testutil.NewRecordBuilder(0).Build())
	require.NoError(t, err)

	// Point the store at a path whose parent is a regular file.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	store.path = filepath.Join(blocker, "sessions.json")

	assert.Error(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.NoError(t, err, "record survives a failed write")
}

func TestStore_Artifacts(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	id, err := store.Insert(ctx, *testutil.NewRecordBuilder(0).Build())
	require.NoError(t, err)

	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["a"]}`)))
	require.NoError(t, store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, []byte(`{"commonGround":["b"]}`)))

	reopened, err := Open(store.Path())
	require.NoError(t, err)
	arts, err := reopened.Artifacts(id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.JSONEq(t, `{"commonGround":["a"]}`, string(arts[0].Data))
	assert.Less(t, arts[0].Seq, arts[1].Seq)

	require.NoError(t, reopened.Delete(ctx, id))
	arts, err = reopened.Artifacts(id, core.ArtifactKindAnalysis)
	require.NoError(t, err)
	assert.Empty(t, arts)
}
