package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/errs"
	"soundvault/internal/models"
)

var tracer = otel.Tracer("soundvault-catalog")

// Service is the user-facing song catalog
type Service struct {
	repo        SongRepo
	cache       Cache
	codeRetries int
	codeGen     func() string
}

// Option configures a catalog Service
type Option func(*Service)

// WithCodeGenerator overrides the short code generator
func WithCodeGenerator(gen func() string) Option {
	return func(s *Service) { s.codeGen = gen }
}

// NewService creates a catalog over the given repo and cache.
// codeRetries bounds the regenerate-on-collision loop for short codes.
func NewService(repo SongRepo, cache Cache, codeRetries int, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		cache:       cache,
		codeRetries: codeRetries,
		codeGen:     func() string { return xid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and inserts a new song row. A missing short code is
// generated; on a uniqueness collision a generated code is regenerated
// up to the configured bound before surfacing a conflict.
func (s *Service) Create(ctx context.Context, song *models.Song) (*models.Song, error) {
	ctx, span := tracer.Start(ctx, "catalog.create",
		trace.WithAttributes(attribute.String("title", song.Title)),
	)
	defer span.End()

	if err := song.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid song", err)
	}
	if song.Album == "" {
		song.Album = models.DefaultAlbum
	}
	if song.ID == "" {
		song.ID = uuid.New().String()
	}
	if song.CreatedAt.IsZero() {
		song.CreatedAt = time.Now()
	}

	callerCode := song.ShortCode != ""
	for attempt := 0; attempt < s.codeRetries; attempt++ {
		if song.ShortCode == "" {
			song.ShortCode = s.codeGen()
		}
		err := s.repo.InsertSong(ctx, song)
		if err == nil {
			span.SetAttributes(attribute.String("song_id", song.ID))
			return song, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			span.RecordError(err)
			return nil, errs.Wrap(errs.KindStorage, "failed to insert song", err)
		}
		// A caller-supplied code is never silently replaced
		if callerCode {
			return nil, errs.Wrap(errs.KindConflict, fmt.Sprintf("short code %q already in use", song.ShortCode), err)
		}
		log.Printf("short code collision for song %s, regenerating (attempt %d)", song.ID, attempt+1)
		song.ShortCode = ""
	}
	return nil, errs.New(errs.KindConflict, "could not allocate a unique short code")
}

// List returns songs newest first. A non-empty search filters by
// case-insensitive substring over title, artist or album.
func (s *Service) List(ctx context.Context, search string) ([]*models.Song, error) {
	ctx, span := tracer.Start(ctx, "catalog.list",
		trace.WithAttributes(attribute.String("search", search)),
	)
	defer span.End()

	songs, err := s.repo.ListSongs(ctx, search)
	if err != nil {
		span.RecordError(err)
		return nil, errs.Wrap(errs.KindStorage, "failed to list songs", err)
	}
	span.SetAttributes(attribute.Int("song_count", len(songs)))
	return songs, nil
}

// GetByID resolves one song, consulting the cache first
func (s *Service) GetByID(ctx context.Context, id string) (*models.Song, error) {
	ctx, span := tracer.Start(ctx, "catalog.get_by_id",
		trace.WithAttributes(attribute.String("song_id", id)),
	)
	defer span.End()

	song, err := s.cache.GetSong(ctx, id)
	if err != nil {
		// A cache failure falls through to the repo
		log.Printf("Warning: cache lookup failed for song %s: %v", id, err)
	}
	if song != nil {
		return song, nil
	}

	song, err = s.repo.GetSong(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errs.Wrap(errs.KindStorage, "failed to look up song", err)
	}
	if song == nil {
		return nil, errs.New(errs.KindNotFound, fmt.Sprintf("song not found: %s", id))
	}

	if err := s.cache.SetSong(ctx, song); err != nil {
		log.Printf("Warning: failed to cache song %s: %v", id, err)
	}
	return song, nil
}

// DeleteRow removes the song row and invalidates its cache entry
func (s *Service) DeleteRow(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "catalog.delete_row",
		trace.WithAttributes(attribute.String("song_id", id)),
	)
	defer span.End()

	if err := s.repo.DeleteSong(ctx, id); err != nil {
		span.RecordError(err)
		return errs.Wrap(errs.KindStorage, "failed to delete song", err)
	}
	if err := s.cache.InvalidateSong(ctx, id); err != nil {
		log.Printf("Warning: failed to invalidate cache for song %s: %v", id, err)
	}
	return nil
}
