package catalog

import (
	"context"
	"errors"

	"soundvault/internal/models"
)

// ErrDuplicateCode is returned by SongRepo.InsertSong when the short
// code is already taken.
var ErrDuplicateCode = errors.New("short code already in use")

// SongRepo persists song rows. GetSong returns (nil, nil) when absent.
type SongRepo interface {
	InsertSong(ctx context.Context, song *models.Song) error
	ListSongs(ctx context.Context, search string) ([]*models.Song, error)
	GetSong(ctx context.Context, id string) (*models.Song, error)
	DeleteSong(ctx context.Context, id string) error
}

// Cache holds song metadata with a TTL. GetSong returns (nil, nil) on a
// miss.
type Cache interface {
	GetSong(ctx context.Context, songID string) (*models.Song, error)
	SetSong(ctx context.Context, song *models.Song) error
	InvalidateSong(ctx context.Context, songID string) error
}
