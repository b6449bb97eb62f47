package streamer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/errs"
	"soundvault/internal/models"
)

var tracer = otel.Tracer("soundvault-streamer")

// Service resolves songs and replays their audio bytes to a consumer.
//
// All failures that can still be reported as a status code happen in
// Open. Once SendTo has pushed the first byte, a failure can only be
// signalled by closing the output early; that asymmetry is inherent to
// streaming and is encoded in the Open/SendTo split.
type Service struct {
	catalog *catalog.Service
	store   *chunkstore.Store
}

// NewService creates a streaming retrieval service
func NewService(cat *catalog.Service, store *chunkstore.Store) *Service {
	return &Service{catalog: cat, store: store}
}

// Session is one open read session against the chunk store
type Session struct {
	Song   *models.Song
	reader *chunkstore.Reader
}

// Open resolves the song and opens its chunk stream. Returns a
// not-found error when the song is absent, has no linked object, or the
// object descriptor is missing.
func (s *Service) Open(ctx context.Context, songID string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "streamer.open",
		trace.WithAttributes(attribute.String("song_id", songID)),
	)
	defer span.End()

	song, err := s.catalog.GetByID(ctx, songID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if song.ObjectID == "" {
		return nil, errs.New(errs.KindNotFound, fmt.Sprintf("song %s has no audio object", songID))
	}

	reader, err := s.store.OpenReadStream(ctx, song.ObjectID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, chunkstore.ErrObjectNotFound) {
			return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("audio object missing for song %s", songID), err)
		}
		return nil, errs.Wrap(errs.KindStorage, "failed to open audio stream", err)
	}

	span.SetAttributes(
		attribute.String("object_id", song.ObjectID),
		attribute.Int64("object_size", reader.Descriptor().Size),
	)
	return &Session{Song: song, reader: reader}, nil
}

// Size returns the total byte length of the session's object
func (sess *Session) Size() int64 {
	return sess.reader.Descriptor().Size
}

type flusher interface {
	Flush()
}

// SendTo forwards chunks to the sink in order as they become available,
// flushing after each one so playback starts before the object is fully
// read. A failure after the first byte is a streaming error: the sink
// is simply cut short.
func (sess *Session) SendTo(w io.Writer) error {
	f, canFlush := w.(flusher)
	var sent int64
	for {
		chunk, err := sess.reader.NextChunk()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if sent > 0 {
				return errs.Wrap(errs.KindStreaming, fmt.Sprintf("stream interrupted after %d bytes", sent), err)
			}
			return errs.Wrap(errs.KindStorage, "failed to read first chunk", err)
		}
		n, err := w.Write(chunk)
		sent += int64(n)
		if err != nil {
			// Consumer went away; not a catalog or store error
			return errs.Wrap(errs.KindStreaming, fmt.Sprintf("consumer closed after %d bytes", sent), err)
		}
		if canFlush {
			f.Flush()
		}
	}
}

// Close releases the read session
func (sess *Session) Close() error {
	return sess.reader.Close()
}
