package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"soundvault/internal/models"
)

// MemSongRepo is an in-memory SongRepo used in tests
type MemSongRepo struct {
	mu    sync.Mutex
	songs []*models.Song
}

func NewMemSongRepo() *MemSongRepo {
	return &MemSongRepo{}
}

func (m *MemSongRepo) InsertSong(_ context.Context, song *models.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.songs {
		if existing.ShortCode == song.ShortCode {
			return fmt.Errorf("short code %q: %w", song.ShortCode, ErrDuplicateCode)
		}
		if existing.ID == song.ID {
			return fmt.Errorf("song id already exists: %s", song.ID)
		}
	}
	s := *song
	m.songs = append(m.songs, &s)
	return nil
}

func (m *MemSongRepo) ListSongs(_ context.Context, search string) ([]*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(search)
	var result []*models.Song
	for _, song := range m.songs {
		if search != "" && !matches(song, needle) {
			continue
		}
		s := *song
		result = append(result, &s)
	}
	// newest first; insertion order breaks ties, so a stable sort over
	// the reversed slice keeps later inserts ahead
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func matches(song *models.Song, needle string) bool {
	return strings.Contains(strings.ToLower(song.Title), needle) ||
		strings.Contains(strings.ToLower(song.Artist), needle) ||
		strings.Contains(strings.ToLower(song.Album), needle)
}

func (m *MemSongRepo) GetSong(_ context.Context, id string) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, song := range m.songs {
		if song.ID == id {
			s := *song
			return &s, nil
		}
	}
	return nil, nil
}

func (m *MemSongRepo) DeleteSong(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, song := range m.songs {
		if song.ID == id {
			m.songs = append(m.songs[:i], m.songs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Count reports how many song rows are held
func (m *MemSongRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.songs)
}

// MemCache is an in-memory Cache used in tests
type MemCache struct {
	mu    sync.Mutex
	songs map[string]*models.Song
}

func NewMemCache() *MemCache {
	return &MemCache{songs: make(map[string]*models.Song)}
}

func (m *MemCache) GetSong(_ context.Context, songID string) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	song, ok := m.songs[songID]
	if !ok {
		return nil, nil
	}
	s := *song
	return &s, nil
}

func (m *MemCache) SetSong(_ context.Context, song *models.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *song
	m.songs[song.ID] = &s
	return nil
}

func (m *MemCache) InvalidateSong(_ context.Context, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.songs, songID)
	return nil
}
