package deleter

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
)

var tracer = otel.Tracer("soundvault-deleter")

// Service removes songs and their backing audio objects. The storage
// side delete is best effort: a failed chunk cleanup is logged, never
// surfaced, so a catalog row cannot become undeletable because of a
// transient storage error.
type Service struct {
	catalog *catalog.Service
	store   *chunkstore.Store
}

// NewService creates a deletion service
func NewService(cat *catalog.Service, store *chunkstore.Store) *Service {
	return &Service{catalog: cat, store: store}
}

// DeleteSong removes the song row and best-effort removes its object
func (s *Service) DeleteSong(ctx context.Context, songID string) error {
	ctx, span := tracer.Start(ctx, "deleter.delete_song",
		trace.WithAttributes(attribute.String("song_id", songID)),
	)
	defer span.End()

	song, err := s.catalog.GetByID(ctx, songID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if song.ObjectID != "" {
		if err := s.store.Delete(ctx, song.ObjectID); err != nil {
			// Orphaned chunks are a reclaimable leak; an undeletable
			// song row is a user-facing defect. Keep going.
			span.RecordError(err)
			log.Printf("Warning: failed to delete object %s for song %s: %v", song.ObjectID, songID, err)
		}
	}

	if err := s.catalog.DeleteRow(ctx, songID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
