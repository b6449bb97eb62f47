package chunkstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/models"
)

var tracer = otel.Tracer("soundvault-chunkstore")

// Store is the chunked object store. Chunk payloads go to a PayloadStore,
// chunk rows and object descriptors to a MetaStore. The descriptor row is
// written last, so readers only ever observe fully written objects.
type Store struct {
	payloads  PayloadStore
	meta      MetaStore
	chunkSize int64

	mu      sync.Mutex
	pending map[string]*pendingUpload
}

// pendingUpload tracks an open upload before its descriptor is committed
type pendingUpload struct {
	filename  string
	nextSeq   int
	written   int64
	startedAt time.Time
}

// NewStore creates a chunk store with the given chunk size ceiling
func NewStore(payloads PayloadStore, meta MetaStore, chunkSize int64) *Store {
	return &Store{
		payloads:  payloads,
		meta:      meta,
		chunkSize: chunkSize,
		pending:   make(map[string]*pendingUpload),
	}
}

// ChunkSize returns the configured chunk size ceiling in bytes
func (s *Store) ChunkSize() int64 {
	return s.chunkSize
}

func chunkKey(objectID string, seq int) string {
	return fmt.Sprintf("chunks/%s/%d", objectID, seq)
}

// BeginUpload allocates a fresh object id. Nothing is visible to readers
// until Commit.
func (s *Store) BeginUpload(ctx context.Context, filename string) (string, error) {
	_, span := tracer.Start(ctx, "chunkstore.begin_upload",
		trace.WithAttributes(attribute.String("filename", filename)),
	)
	defer span.End()

	objectID := uuid.New().String()

	s.mu.Lock()
	s.pending[objectID] = &pendingUpload{
		filename:  filename,
		startedAt: time.Now(),
	}
	s.mu.Unlock()

	span.SetAttributes(attribute.String("object_id", objectID))
	return objectID, nil
}

// WriteChunk appends one chunk to an open upload. Sequence numbers must
// arrive contiguously from 0.
func (s *Store) WriteChunk(ctx context.Context, objectID string, seq int, data []byte) error {
	if int64(len(data)) > s.chunkSize {
		return fmt.Errorf("%w: %d bytes exceeds ceiling %d", ErrChunkTooLarge, len(data), s.chunkSize)
	}

	s.mu.Lock()
	up, ok := s.pending[objectID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUploadNotFound, objectID)
	}
	if seq != up.nextSeq {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d, expected %d", ErrOutOfOrderChunk, seq, up.nextSeq)
	}
	s.mu.Unlock()

	key := chunkKey(objectID, seq)
	if err := s.payloads.PutChunk(ctx, key, data); err != nil {
		return fmt.Errorf("failed to store chunk payload %d: %w", seq, err)
	}

	chunk := &models.ChunkInfo{
		ObjectID:  objectID,
		Seq:       seq,
		Size:      int64(len(data)),
		ObjectKey: key,
	}
	if err := s.meta.InsertChunk(ctx, chunk); err != nil {
		return fmt.Errorf("failed to record chunk %d: %w", seq, err)
	}

	s.mu.Lock()
	up.nextSeq++
	up.written += int64(len(data))
	s.mu.Unlock()
	return nil
}

// Commit publishes the object descriptor, making the chunk set visible
// to readers. The declared total length must equal the bytes written.
func (s *Store) Commit(ctx context.Context, objectID string, totalLength int64) error {
	ctx, span := tracer.Start(ctx, "chunkstore.commit",
		trace.WithAttributes(
			attribute.String("object_id", objectID),
			attribute.Int64("total_length", totalLength),
		),
	)
	defer span.End()

	s.mu.Lock()
	up, ok := s.pending[objectID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUploadNotFound, objectID)
	}
	written := up.written
	chunkCount := up.nextSeq
	filename := up.filename
	s.mu.Unlock()

	if written != totalLength {
		return fmt.Errorf("%w: wrote %d bytes, declared %d", ErrLengthMismatch, written, totalLength)
	}

	desc := &models.ObjectDescriptor{
		ID:         objectID,
		Filename:   filename,
		Size:       totalLength,
		ChunkCount: chunkCount,
		CreatedAt:  time.Now(),
	}
	if err := s.meta.InsertDescriptor(ctx, desc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit object descriptor: %w", err)
	}

	s.mu.Lock()
	delete(s.pending, objectID)
	s.mu.Unlock()
	return nil
}

// Abort removes all chunks written for an upload that will never commit.
// Safe to call more than once and on ids that never wrote a chunk.
func (s *Store) Abort(ctx context.Context, objectID string) error {
	ctx, span := tracer.Start(ctx, "chunkstore.abort",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	s.mu.Lock()
	delete(s.pending, objectID)
	s.mu.Unlock()

	if err := s.removeChunks(ctx, objectID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Delete removes a committed object: descriptor first so readers stop
// seeing it, then chunk rows and payloads. Deleting an absent object id
// is a no-op.
func (s *Store) Delete(ctx context.Context, objectID string) error {
	ctx, span := tracer.Start(ctx, "chunkstore.delete",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	if err := s.meta.DeleteDescriptor(ctx, objectID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object descriptor: %w", err)
	}
	if err := s.removeChunks(ctx, objectID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Store) removeChunks(ctx context.Context, objectID string) error {
	chunks, err := s.meta.GetChunks(ctx, objectID)
	if err != nil {
		return fmt.Errorf("failed to list chunks for cleanup: %w", err)
	}
	for _, chunk := range chunks {
		if err := s.payloads.DeleteChunk(ctx, chunk.ObjectKey); err != nil {
			return fmt.Errorf("failed to delete chunk payload %d: %w", chunk.Seq, err)
		}
	}
	if err := s.meta.DeleteChunks(ctx, objectID); err != nil {
		return fmt.Errorf("failed to delete chunk rows: %w", err)
	}
	return nil
}

// Stat returns the committed descriptor for an object id
func (s *Store) Stat(ctx context.Context, objectID string) (*models.ObjectDescriptor, error) {
	desc, err := s.meta.GetDescriptor(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up object descriptor: %w", err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}
	return desc, nil
}

// OpenReadStream opens a lazy reader over a committed object's chunks in
// sequence order. Returns ErrObjectNotFound when no descriptor exists.
func (s *Store) OpenReadStream(ctx context.Context, objectID string) (*Reader, error) {
	ctx, span := tracer.Start(ctx, "chunkstore.open_read_stream",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	desc, err := s.meta.GetDescriptor(ctx, objectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up object descriptor: %w", err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}

	chunks, err := s.meta.GetChunks(ctx, objectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("object_size", desc.Size),
		attribute.Int("chunk_count", len(chunks)),
	)
	return &Reader{
		ctx:      ctx,
		payloads: s.payloads,
		desc:     desc,
		chunks:   chunks,
	}, nil
}
