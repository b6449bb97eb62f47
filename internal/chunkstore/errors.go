package chunkstore

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned when no committed descriptor exists
	ErrObjectNotFound = errors.New("object not found")

	// ErrOutOfOrderChunk is returned when a chunk arrives with an
	// unexpected sequence number
	ErrOutOfOrderChunk = errors.New("chunk out of order")

	// ErrChunkTooLarge is returned when a chunk exceeds the configured size ceiling
	ErrChunkTooLarge = errors.New("chunk too large")

	// ErrLengthMismatch is returned by Commit when the sum of written
	// chunk lengths differs from the declared total
	ErrLengthMismatch = errors.New("object length mismatch")

	// ErrUploadNotFound is returned when writing to an object id that
	// has no open upload
	ErrUploadNotFound = errors.New("no open upload for object")
)

// ChunkReadError reports a storage failure while pulling one chunk of an
// open read stream. Distinct from ErrObjectNotFound: the descriptor
// exists, the underlying storage failed.
type ChunkReadError struct {
	ObjectID string
	Seq      int
	Err      error
}

func (e *ChunkReadError) Error() string {
	return fmt.Sprintf("failed to read chunk %d of object %s: %v", e.Seq, e.ObjectID, e.Err)
}

func (e *ChunkReadError) Unwrap() error {
	return e.Err
}
