package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultAlbum is used when an upload does not name an album.
const DefaultAlbum = "Unknown Album"

// Song represents a catalog entry stored in MySQL
type Song struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	DurationSecs int       `json:"duration"`
	ShortCode    string    `json:"short_code"`
	ObjectID     string    `json:"object_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Display returns the song duration rendered as M:SS
func (s *Song) Display() string {
	return FormatDuration(s.DurationSecs)
}

// MarshalJSON adds the rendered duration alongside the raw seconds
func (s Song) MarshalJSON() ([]byte, error) {
	type alias Song
	return json.Marshal(struct {
		alias
		DurationDisplay string `json:"duration_display"`
	}{alias(s), s.Display()})
}

// Validate checks the required song fields before persistence
func (s *Song) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if s.Artist == "" {
		return fmt.Errorf("artist is required")
	}
	if s.DurationSecs <= 0 {
		return fmt.Errorf("duration must be a positive number of seconds")
	}
	return nil
}

// ObjectDescriptor marks a chunk set as complete and readable.
// A descriptor row exists only for fully written objects.
type ObjectDescriptor struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkInfo is the metadata row for one stored chunk
type ChunkInfo struct {
	ObjectID  string `json:"object_id"`
	Seq       int    `json:"seq"`
	Size      int64  `json:"size"`
	ObjectKey string `json:"object_key"`
}

// ChunkData holds chunk bytes in flight during upload/download
type ChunkData struct {
	Data []byte
	Seq  int
	Size int64
}

// FormatDuration renders a duration in seconds as M:SS (65 -> "1:05")
func FormatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
