package chunkstore_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"soundvault/internal/chunkstore"
)

const testChunkSize = 8

func newTestStore() (*chunkstore.Store, *chunkstore.MemPayloadStore, *chunkstore.MemMetaStore) {
	payloads := chunkstore.NewMemPayloadStore()
	meta := chunkstore.NewMemMetaStore()
	return chunkstore.NewStore(payloads, meta, testChunkSize), payloads, meta
}

func uploadBytes(t *testing.T, store *chunkstore.Store, data []byte) string {
	t.Helper()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "test.mp3")
	require.NoError(t, err)
	seq := 0
	for off := 0; off < len(data); off += testChunkSize {
		end := off + testChunkSize
		if end > len(data) {
			end = len(data)
		}
		require.NoError(t, store.WriteChunk(ctx, objectID, seq, data[off:end]))
		seq++
	}
	require.NoError(t, store.Commit(ctx, objectID, int64(len(data))))
	return objectID
}

func TestRoundTrip(t *testing.T) {
	// given
	store, _, _ := newTestStore()
	data := []byte("twenty-seven bytes of audio")

	// when
	objectID := uploadBytes(t, store, data)

	// then
	reader, err := store.OpenReadStream(context.Background(), objectID)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoError(t, reader.Close())
}

func TestWriteChunkOutOfOrder(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "a.mp3")
	require.NoError(t, err)

	require.NoError(t, store.WriteChunk(ctx, objectID, 0, []byte("aaaa")))

	err = store.WriteChunk(ctx, objectID, 2, []byte("cccc"))
	require.ErrorIs(t, err, chunkstore.ErrOutOfOrderChunk)

	// repeating an already written sequence number is also rejected
	err = store.WriteChunk(ctx, objectID, 0, []byte("aaaa"))
	require.ErrorIs(t, err, chunkstore.ErrOutOfOrderChunk)
}

func TestWriteChunkTooLarge(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "a.mp3")
	require.NoError(t, err)

	err = store.WriteChunk(ctx, objectID, 0, bytes.Repeat([]byte("x"), testChunkSize+1))
	require.ErrorIs(t, err, chunkstore.ErrChunkTooLarge)
}

func TestWriteChunkUnknownUpload(t *testing.T) {
	store, _, _ := newTestStore()
	err := store.WriteChunk(context.Background(), "no-such-id", 0, []byte("aa"))
	require.ErrorIs(t, err, chunkstore.ErrUploadNotFound)
}

func TestCommitLengthMismatch(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "a.mp3")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, objectID, 0, []byte("aaaa")))

	err = store.Commit(ctx, objectID, 99)
	require.ErrorIs(t, err, chunkstore.ErrLengthMismatch)

	// the object never became visible
	_, err = store.OpenReadStream(ctx, objectID)
	require.ErrorIs(t, err, chunkstore.ErrObjectNotFound)
}

func TestNoPartialVisibility(t *testing.T) {
	// given an upload that dies mid-stream
	store, _, meta := newTestStore()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "dying.mp3")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, objectID, 0, []byte("aaaaaaaa")))
	require.NoError(t, store.WriteChunk(ctx, objectID, 1, []byte("bbbb")))

	// then readers never see it: no commit, no descriptor
	_, err = store.OpenReadStream(ctx, objectID)
	require.ErrorIs(t, err, chunkstore.ErrObjectNotFound)

	// and abort leaves nothing behind
	require.NoError(t, store.Abort(ctx, objectID))
	require.Equal(t, 0, meta.ChunkRowCount(objectID))
}

func TestAbortIdempotent(t *testing.T) {
	store, payloads, _ := newTestStore()
	ctx := context.Background()
	objectID, err := store.BeginUpload(ctx, "a.mp3")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, objectID, 0, []byte("aaaa")))

	require.NoError(t, store.Abort(ctx, objectID))
	require.NoError(t, store.Abort(ctx, objectID))
	require.Equal(t, 0, payloads.Len())
}

func TestDeleteIdempotent(t *testing.T) {
	store, payloads, _ := newTestStore()
	ctx := context.Background()
	objectID := uploadBytes(t, store, []byte("some audio bytes"))

	require.NoError(t, store.Delete(ctx, objectID))
	require.Equal(t, 0, payloads.Len())
	_, err := store.OpenReadStream(ctx, objectID)
	require.ErrorIs(t, err, chunkstore.ErrObjectNotFound)

	// deleting a non-existent object id is a no-op, not an error
	require.NoError(t, store.Delete(ctx, objectID))
	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestChunkReadErrorDistinctFromNotFound(t *testing.T) {
	store, payloads, _ := newTestStore()
	ctx := context.Background()
	objectID := uploadBytes(t, store, bytes.Repeat([]byte("z"), testChunkSize*3))

	// lose the middle chunk payload behind the store's back
	payloads.Drop(fmt.Sprintf("chunks/%s/1", objectID))

	reader, err := store.OpenReadStream(ctx, objectID)
	require.NoError(t, err)

	// first chunk still reads fine
	first, err := reader.NextChunk()
	require.NoError(t, err)
	require.Len(t, first, testChunkSize)

	// the second pull fails with a read error, not a not-found
	_, err = reader.NextChunk()
	var readErr *chunkstore.ChunkReadError
	require.ErrorAs(t, err, &readErr)
	require.Equal(t, 1, readErr.Seq)
	require.False(t, errors.Is(err, chunkstore.ErrObjectNotFound))
}

func TestCommitTwiceFails(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()
	objectID := uploadBytes(t, store, []byte("abcd"))

	// the pending upload is gone after commit
	err := store.Commit(ctx, objectID, 4)
	require.ErrorIs(t, err, chunkstore.ErrUploadNotFound)
}

func TestReaderDescriptor(t *testing.T) {
	store, _, _ := newTestStore()
	data := bytes.Repeat([]byte("q"), testChunkSize*2+3)
	objectID := uploadBytes(t, store, data)

	reader, err := store.OpenReadStream(context.Background(), objectID)
	require.NoError(t, err)
	desc := reader.Descriptor()
	require.Equal(t, objectID, desc.ID)
	require.Equal(t, int64(len(data)), desc.Size)
	require.Equal(t, 3, desc.ChunkCount)
	require.Equal(t, "test.mp3", desc.Filename)
}
