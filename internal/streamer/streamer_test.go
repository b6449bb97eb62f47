package streamer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/errs"
	"soundvault/internal/ingest"
	"soundvault/internal/models"
	"soundvault/internal/streamer"
)

const testChunkSize = 8

type testEnv struct {
	streamer *streamer.Service
	pipeline *ingest.Pipeline
	store    *chunkstore.Store
	payloads *chunkstore.MemPayloadStore
	catalog  *catalog.Service
}

func newTestEnv() *testEnv {
	payloads := chunkstore.NewMemPayloadStore()
	meta := chunkstore.NewMemMetaStore()
	store := chunkstore.NewStore(payloads, meta, testChunkSize)
	cat := catalog.NewService(catalog.NewMemSongRepo(), catalog.NewMemCache(), 3)
	return &testEnv{
		streamer: streamer.NewService(cat, store),
		pipeline: ingest.NewPipeline(store, cat, 1<<20),
		store:    store,
		payloads: payloads,
		catalog:  cat,
	}
}

func (e *testEnv) upload(t *testing.T, data []byte) *models.Song {
	t.Helper()
	result, err := e.pipeline.Upload(context.Background(), &ingest.UploadRequest{
		Filename:     "track.mp3",
		ContentType:  "audio/mpeg",
		DeclaredSize: int64(len(data)),
		Title:        "Track",
		Artist:       "Somebody",
		DurationSecs: 120,
		Body:         bytes.NewReader(data),
	})
	require.NoError(t, err)
	return result.Song
}

type flushCountingSink struct {
	bytes.Buffer
	flushes int
}

func (f *flushCountingSink) Flush() { f.flushes++ }

func TestStreamRoundTrip(t *testing.T) {
	// given
	env := newTestEnv()
	data := bytes.Repeat([]byte("abcdefg"), 5) // 35 bytes, 5 chunks of 8 then remainder
	song := env.upload(t, data)

	// when
	sess, err := env.streamer.Open(context.Background(), song.ID)
	require.NoError(t, err)
	defer sess.Close()

	var sink flushCountingSink
	require.NoError(t, sess.SendTo(&sink))

	// then: byte-for-byte, in order, flushed per chunk
	require.Equal(t, data, sink.Bytes())
	require.Equal(t, int64(len(data)), sess.Size())
	require.Equal(t, 5, sink.flushes)
}

func TestOpenUnknownSong(t *testing.T) {
	env := newTestEnv()
	_, err := env.streamer.Open(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestOpenSongWithMissingObject(t *testing.T) {
	// the song row survives but its object was deleted out-of-band
	env := newTestEnv()
	song := env.upload(t, []byte("short audio"))
	require.NoError(t, env.store.Delete(context.Background(), song.ObjectID))

	_, err := env.streamer.Open(context.Background(), song.ID)
	require.Error(t, err)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMidStreamFailureIsStreamingError(t *testing.T) {
	env := newTestEnv()
	data := bytes.Repeat([]byte("z"), testChunkSize*4)
	song := env.upload(t, data)

	// lose a later chunk so the failure happens after bytes were sent
	env.payloads.Drop(fmt.Sprintf("chunks/%s/2", song.ObjectID))

	sess, err := env.streamer.Open(context.Background(), song.ID)
	require.NoError(t, err)
	defer sess.Close()

	var sink bytes.Buffer
	err = sess.SendTo(&sink)
	require.Error(t, err)
	require.Equal(t, errs.KindStreaming, errs.KindOf(err))
	// the first two chunks made it out before the cut
	require.Equal(t, data[:testChunkSize*2], sink.Bytes())
}

func TestFirstChunkFailureIsStorageError(t *testing.T) {
	env := newTestEnv()
	song := env.upload(t, bytes.Repeat([]byte("z"), testChunkSize*2))
	env.payloads.Drop(fmt.Sprintf("chunks/%s/0", song.ObjectID))

	sess, err := env.streamer.Open(context.Background(), song.ID)
	require.NoError(t, err)
	defer sess.Close()

	var sink bytes.Buffer
	err = sess.SendTo(&sink)
	require.Error(t, err)
	require.Equal(t, errs.KindStorage, errs.KindOf(err))
	require.Zero(t, sink.Len())
}

type failingSink struct {
	allow int
}

func (f *failingSink) Write(p []byte) (int, error) {
	if f.allow <= 0 {
		return 0, errors.New("broken pipe")
	}
	f.allow--
	return len(p), nil
}

func TestConsumerDisconnectIsStreamingError(t *testing.T) {
	env := newTestEnv()
	song := env.upload(t, bytes.Repeat([]byte("z"), testChunkSize*3))

	sess, err := env.streamer.Open(context.Background(), song.ID)
	require.NoError(t, err)
	defer sess.Close()

	err = sess.SendTo(&failingSink{allow: 1})
	require.Error(t, err)
	require.Equal(t, errs.KindStreaming, errs.KindOf(err))

	// the catalog and store are untouched by a consumer disconnect
	_, err = env.streamer.Open(context.Background(), song.ID)
	require.NoError(t, err)
}
