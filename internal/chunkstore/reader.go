package chunkstore

import (
	"context"
	"io"

	"soundvault/internal/models"
)

// Reader replays a committed object's bytes in chunk order. Chunks are
// pulled from the payload store one at a time, so memory use is bounded
// by the chunk size regardless of object size. The sequence is finite
// and non-restartable.
type Reader struct {
	ctx      context.Context
	payloads PayloadStore
	desc     *models.ObjectDescriptor
	chunks   []*models.ChunkInfo

	next int
	buf  []byte
	err  error
}

// Descriptor returns the object descriptor backing this reader
func (r *Reader) Descriptor() *models.ObjectDescriptor {
	return r.desc
}

// Read implements io.Reader. A failure pulling a chunk surfaces as a
// ChunkReadError; once returned, the reader stays failed.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	for len(r.buf) == 0 {
		if r.next >= len(r.chunks) {
			r.err = io.EOF
			return 0, io.EOF
		}
		chunk := r.chunks[r.next]
		data, err := r.payloads.GetChunk(r.ctx, chunk.ObjectKey)
		if err != nil {
			r.err = &ChunkReadError{ObjectID: r.desc.ID, Seq: chunk.Seq, Err: err}
			return 0, r.err
		}
		r.next++
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// NextChunk pulls the next whole chunk, for consumers that forward
// chunk-by-chunk. Returns io.EOF after the last chunk.
func (r *Reader) NextChunk() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) > 0 {
		data := r.buf
		r.buf = nil
		return data, nil
	}
	if r.next >= len(r.chunks) {
		r.err = io.EOF
		return nil, io.EOF
	}
	chunk := r.chunks[r.next]
	data, err := r.payloads.GetChunk(r.ctx, chunk.ObjectKey)
	if err != nil {
		r.err = &ChunkReadError{ObjectID: r.desc.ID, Seq: chunk.Seq, Err: err}
		return nil, r.err
	}
	r.next++
	return data, nil
}

// Close releases the read session
func (r *Reader) Close() error {
	r.buf = nil
	r.chunks = nil
	if r.err == nil {
		r.err = io.EOF
	}
	return nil
}
