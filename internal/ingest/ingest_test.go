package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/errs"
	"soundvault/internal/ingest"
)

const (
	testChunkSize = 16
	testMaxUpload = 1024
)

type testEnv struct {
	pipeline *ingest.Pipeline
	store    *chunkstore.Store
	payloads *chunkstore.MemPayloadStore
	meta     *chunkstore.MemMetaStore
	repo     *catalog.MemSongRepo
	catalog  *catalog.Service
}

func newTestEnv(opts ...catalog.Option) *testEnv {
	payloads := chunkstore.NewMemPayloadStore()
	meta := chunkstore.NewMemMetaStore()
	store := chunkstore.NewStore(payloads, meta, testChunkSize)
	repo := catalog.NewMemSongRepo()
	cat := catalog.NewService(repo, catalog.NewMemCache(), 3, opts...)
	return &testEnv{
		pipeline: ingest.NewPipeline(store, cat, testMaxUpload),
		store:    store,
		payloads: payloads,
		meta:     meta,
		repo:     repo,
		catalog:  cat,
	}
}

func audioRequest(data []byte) *ingest.UploadRequest {
	return &ingest.UploadRequest{
		Filename:     "song.mp3",
		ContentType:  "audio/mpeg",
		DeclaredSize: int64(len(data)),
		Title:        "Blue Moon",
		Artist:       "Miles",
		DurationSecs: 65,
		Body:         bytes.NewReader(data),
	}
}

func (e *testEnv) requireNothingPersisted(t *testing.T) {
	t.Helper()
	require.Equal(t, 0, e.payloads.Len())
	require.Equal(t, 0, e.repo.Count())
}

func TestUploadSuccess(t *testing.T) {
	// given
	env := newTestEnv()
	data := bytes.Repeat([]byte("soundvault"), 10)

	// when
	result, err := env.pipeline.Upload(context.Background(), audioRequest(data))

	// then
	require.NoError(t, err)
	require.NotEmpty(t, result.ObjectID)
	require.Equal(t, result.ObjectID, result.Song.ObjectID)
	require.Equal(t, "Blue Moon", result.Song.Title)
	require.Equal(t, 1, env.repo.Count())

	reader, err := env.store.OpenReadStream(context.Background(), result.ObjectID)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestUploadRejectsNonAudio(t *testing.T) {
	env := newTestEnv()
	req := audioRequest([]byte("not audio"))
	req.ContentType = "video/mp4"

	_, err := env.pipeline.Upload(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

func TestUploadRejectsMissingFields(t *testing.T) {
	env := newTestEnv()
	req := audioRequest([]byte("bytes"))
	req.Title = ""

	_, err := env.pipeline.Upload(context.Background(), req)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

func TestUploadRejectsDeclaredSizeOverCeiling(t *testing.T) {
	env := newTestEnv()
	req := audioRequest([]byte("bytes"))
	req.DeclaredSize = testMaxUpload + 1

	_, err := env.pipeline.Upload(context.Background(), req)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

func TestUploadEnforcesCeilingOnUndeclaredStream(t *testing.T) {
	env := newTestEnv()
	req := audioRequest(bytes.Repeat([]byte("x"), testMaxUpload+testChunkSize))
	req.DeclaredSize = 0 // client did not declare a size

	_, err := env.pipeline.Upload(context.Background(), req)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

func TestUploadStorageFailureLeavesNothing(t *testing.T) {
	env := newTestEnv()
	env.payloads.PutErr = errors.New("disk on fire")

	_, err := env.pipeline.Upload(context.Background(), audioRequest([]byte("some audio")))
	require.Error(t, err)
	require.Equal(t, errs.KindStorage, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

type brokenReader struct {
	data []byte
	err  error
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func TestUploadClientDisconnectMidStreamLeavesNothing(t *testing.T) {
	// the body dies after a few chunks, as if the client went away
	env := newTestEnv()
	req := audioRequest(nil)
	req.DeclaredSize = 100
	req.Body = &brokenReader{
		data: bytes.Repeat([]byte("y"), testChunkSize*3),
		err:  errors.New("connection reset by peer"),
	}

	_, err := env.pipeline.Upload(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, errs.KindStorage, errs.KindOf(err))
	env.requireNothingPersisted(t)
}

func TestUploadCancelledContextLeavesNothing(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.Upload(ctx, audioRequest([]byte("some audio")))
	require.Error(t, err)
	env.requireNothingPersisted(t)
}

func TestUploadDuplicateCodeRollsBackObject(t *testing.T) {
	// every generated code collides, so the song insert finally fails
	// and the already committed object must be rolled back
	env := newTestEnv(catalog.WithCodeGenerator(func() string { return "stuck" }))
	ctx := context.Background()

	_, err := env.pipeline.Upload(ctx, audioRequest([]byte("first upload")))
	require.NoError(t, err)

	result2, err := env.pipeline.Upload(ctx, audioRequest([]byte("second upload")))
	require.Error(t, err)
	require.Nil(t, result2)
	require.Equal(t, errs.KindConflict, errs.KindOf(err))

	// only the first upload survives, in both stores
	require.Equal(t, 1, env.repo.Count())
	songs, err := env.catalog.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, songs, 1)
	_, err = env.store.OpenReadStream(ctx, songs[0].ObjectID)
	require.NoError(t, err)
}

func TestUploadEmptyBody(t *testing.T) {
	// a zero-byte audio file commits cleanly with zero chunks
	env := newTestEnv()
	req := audioRequest(nil)
	req.Body = bytes.NewReader(nil)
	req.DeclaredSize = 0

	result, err := env.pipeline.Upload(context.Background(), req)
	require.NoError(t, err)

	reader, err := env.store.OpenReadStream(context.Background(), result.ObjectID)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Empty(t, got)
}
