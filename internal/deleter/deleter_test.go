package deleter_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/deleter"
	"soundvault/internal/errs"
	"soundvault/internal/ingest"
	"soundvault/internal/models"
)

type testEnv struct {
	deleter  *deleter.Service
	pipeline *ingest.Pipeline
	store    *chunkstore.Store
	payloads *chunkstore.MemPayloadStore
	repo     *catalog.MemSongRepo
	catalog  *catalog.Service
}

func newTestEnv() *testEnv {
	payloads := chunkstore.NewMemPayloadStore()
	meta := chunkstore.NewMemMetaStore()
	store := chunkstore.NewStore(payloads, meta, 16)
	repo := catalog.NewMemSongRepo()
	cat := catalog.NewService(repo, catalog.NewMemCache(), 3)
	return &testEnv{
		deleter:  deleter.NewService(cat, store),
		pipeline: ingest.NewPipeline(store, cat, 1<<20),
		store:    store,
		payloads: payloads,
		repo:     repo,
		catalog:  cat,
	}
}

func (e *testEnv) upload(t *testing.T, data []byte) *models.Song {
	t.Helper()
	result, err := e.pipeline.Upload(context.Background(), &ingest.UploadRequest{
		Filename:     "gone.mp3",
		ContentType:  "audio/mpeg",
		DeclaredSize: int64(len(data)),
		Title:        "Doomed",
		Artist:       "Somebody",
		DurationSecs: 30,
		Body:         bytes.NewReader(data),
	})
	require.NoError(t, err)
	return result.Song
}

func TestDeleteSongRemovesRowAndObject(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	song := env.upload(t, []byte("some audio bytes here"))

	require.NoError(t, env.deleter.DeleteSong(ctx, song.ID))

	require.Equal(t, 0, env.repo.Count())
	require.Equal(t, 0, env.payloads.Len())
	_, err := env.store.OpenReadStream(ctx, song.ObjectID)
	require.ErrorIs(t, err, chunkstore.ErrObjectNotFound)
}

func TestDeleteUnknownSong(t *testing.T) {
	env := newTestEnv()
	err := env.deleter.DeleteSong(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDeleteSucceedsWhenObjectAlreadyGone(t *testing.T) {
	// the object was removed out-of-band; the row must still go away
	env := newTestEnv()
	ctx := context.Background()
	song := env.upload(t, []byte("some audio"))
	require.NoError(t, env.store.Delete(ctx, song.ObjectID))

	require.NoError(t, env.deleter.DeleteSong(ctx, song.ID))
	require.Equal(t, 0, env.repo.Count())
}

func TestDeleteSucceedsDespiteStorageFailure(t *testing.T) {
	// chunk cleanup fails, the user-visible delete must not
	env := newTestEnv()
	ctx := context.Background()
	song := env.upload(t, []byte("sticky audio"))
	env.payloads.DelErr = errors.New("storage unavailable")

	require.NoError(t, env.deleter.DeleteSong(ctx, song.ID))
	require.Equal(t, 0, env.repo.Count())
}
