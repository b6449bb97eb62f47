package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/catalog"
	"soundvault/internal/chunkstore"
	"soundvault/internal/errs"
	"soundvault/internal/models"
)

var tracer = otel.Tracer("soundvault-ingest")

// Pipeline streams validated uploads into the chunk store and links the
// committed object to a new song row. On any failure no partial object
// and no orphan song row survive.
type Pipeline struct {
	store         *chunkstore.Store
	catalog       *catalog.Service
	maxUploadSize int64
}

// UploadRequest carries one inbound upload
type UploadRequest struct {
	Filename     string
	ContentType  string
	DeclaredSize int64 // 0 when the client did not declare a size
	Title        string
	Artist       string
	Album        string
	DurationSecs int
	Body         io.Reader
}

// UploadResult is returned once the song is linked
type UploadResult struct {
	Song     *models.Song
	ObjectID string
}

// NewPipeline creates an ingest pipeline with the given upload ceiling
func NewPipeline(store *chunkstore.Store, cat *catalog.Service, maxUploadSize int64) *Pipeline {
	return &Pipeline{
		store:         store,
		catalog:       cat,
		maxUploadSize: maxUploadSize,
	}
}

// Upload runs the full ingest: validate, stream chunks, commit, link.
func (p *Pipeline) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "ingest.upload",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("filename", req.Filename)),
	)
	defer span.End()

	// Validating: nothing is written until the request is known good
	if err := p.validate(req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Streaming
	objectID, err := p.store.BeginUpload(ctx, req.Filename)
	if err != nil {
		span.RecordError(err)
		return nil, errs.Wrap(errs.KindStorage, "failed to begin upload", err)
	}
	span.SetAttributes(attribute.String("object_id", objectID))

	total, err := p.streamChunks(ctx, objectID, req.Body)
	if err != nil {
		span.RecordError(err)
		p.abort(ctx, objectID)
		return nil, err
	}

	// Committing
	if err := p.store.Commit(ctx, objectID, total); err != nil {
		span.RecordError(err)
		p.abort(ctx, objectID)
		return nil, errs.Wrap(errs.KindStorage, "failed to commit object", err)
	}

	song, err := p.catalog.Create(ctx, &models.Song{
		Title:        req.Title,
		Artist:       req.Artist,
		Album:        req.Album,
		DurationSecs: req.DurationSecs,
		ObjectID:     objectID,
	})
	if err != nil {
		// The object is already committed; roll it back via delete
		span.RecordError(err)
		if delErr := p.store.Delete(ctx, objectID); delErr != nil {
			log.Printf("Warning: failed to roll back object %s: %v", objectID, delErr)
		}
		return nil, err
	}

	// Linked
	span.SetAttributes(
		attribute.String("song_id", song.ID),
		attribute.Int64("file_size", total),
	)
	log.Printf("Upload linked: song %s, object %s, %d bytes", song.ID, objectID, total)
	return &UploadResult{Song: song, ObjectID: objectID}, nil
}

func (p *Pipeline) validate(req *UploadRequest) error {
	if !strings.HasPrefix(req.ContentType, "audio/") {
		return errs.New(errs.KindValidation, fmt.Sprintf("unsupported media type: %q", req.ContentType))
	}
	if req.DeclaredSize > p.maxUploadSize {
		return errs.New(errs.KindValidation, fmt.Sprintf("payload too large: %d bytes exceeds limit %d", req.DeclaredSize, p.maxUploadSize))
	}
	probe := models.Song{
		Title:        req.Title,
		Artist:       req.Artist,
		Album:        req.Album,
		DurationSecs: req.DurationSecs,
	}
	if err := probe.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid song fields", err)
	}
	return nil
}

// streamChunks pulls bytes from the inbound stream and writes them in
// sequence order. Chunk N completes before N+1 starts.
func (p *Pipeline) streamChunks(ctx context.Context, objectID string, body io.Reader) (int64, error) {
	ctx, span := tracer.Start(ctx, "ingest.stream_chunks")
	defer span.End()

	chunkSize := p.store.ChunkSize()
	var total int64
	seq := 0
	for {
		// A cancelled request means the client went away; clean up like
		// any other storage failure
		if err := ctx.Err(); err != nil {
			return 0, errs.Wrap(errs.KindStorage, "upload cancelled", err)
		}

		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			total += int64(n)
			if total > p.maxUploadSize {
				return 0, errs.New(errs.KindValidation, fmt.Sprintf("payload too large: exceeds limit %d", p.maxUploadSize))
			}
			if werr := p.store.WriteChunk(ctx, objectID, seq, buf[:n]); werr != nil {
				span.RecordError(werr)
				return 0, errs.Wrap(errs.KindStorage, fmt.Sprintf("failed to write chunk %d", seq), werr)
			}
			seq++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			span.RecordError(err)
			return 0, errs.Wrap(errs.KindStorage, "upload stream interrupted", err)
		}
	}

	span.SetAttributes(
		attribute.Int64("total_bytes", total),
		attribute.Int("chunk_count", seq),
	)
	return total, nil
}

func (p *Pipeline) abort(ctx context.Context, objectID string) {
	// Cleanup must proceed even when the request context is already gone
	ctx = context.WithoutCancel(ctx)
	if err := p.store.Abort(ctx, objectID); err != nil {
		log.Printf("Warning: failed to abort upload %s: %v", objectID, err)
	}
}
