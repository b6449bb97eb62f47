package chunkstore

import (
	"context"
	"time"

	"soundvault/internal/models"
)

// PayloadStore persists raw chunk bytes keyed by object key
type PayloadStore interface {
	PutChunk(ctx context.Context, objectKey string, data []byte) error
	GetChunk(ctx context.Context, objectKey string) ([]byte, error)
	DeleteChunk(ctx context.Context, objectKey string) error
}

// MetaStore persists chunk rows and object descriptors.
// GetDescriptor returns (nil, nil) when no descriptor exists.
type MetaStore interface {
	InsertChunk(ctx context.Context, chunk *models.ChunkInfo) error
	GetChunks(ctx context.Context, objectID string) ([]*models.ChunkInfo, error)
	DeleteChunks(ctx context.Context, objectID string) error

	InsertDescriptor(ctx context.Context, desc *models.ObjectDescriptor) error
	GetDescriptor(ctx context.Context, objectID string) (*models.ObjectDescriptor, error)
	DeleteDescriptor(ctx context.Context, objectID string) error

	// StaleUncommittedObjects lists object ids that have chunk rows but
	// no descriptor and whose newest chunk predates the cutoff
	StaleUncommittedObjects(ctx context.Context, cutoff time.Time) ([]string, error)
}
