package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/models"
)

const (
	// CacheTTL is the time-to-live for cached song metadata (5 minutes)
	CacheTTL = 5 * time.Minute
)

// RedisClient caches song metadata for the stream path.
// It implements catalog.Cache.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func songKey(songID string) string {
	return fmt.Sprintf("song:%s", songID)
}

// GetSong retrieves cached song metadata; (nil, nil) on a miss
func (rc *RedisClient) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	ctx, span := tracer.Start(ctx, "redis.get_song",
		trace.WithAttributes(attribute.String("song_id", songID)),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, songKey(songID)).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("cache_hit", false))
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var song models.Song
	if err := json.Unmarshal([]byte(data), &song); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached song: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache_hit", true))
	return &song, nil
}

// SetSong stores song metadata in the cache
func (rc *RedisClient) SetSong(ctx context.Context, song *models.Song) error {
	ctx, span := tracer.Start(ctx, "redis.set_song",
		trace.WithAttributes(attribute.String("song_id", song.ID)),
	)
	defer span.End()

	data, err := json.Marshal(song)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal song: %w", err)
	}

	if err := rc.client.Set(ctx, songKey(song.ID), data, CacheTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// InvalidateSong removes song metadata from the cache
func (rc *RedisClient) InvalidateSong(ctx context.Context, songID string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_song",
		trace.WithAttributes(attribute.String("song_id", songID)),
	)
	defer span.End()

	if err := rc.client.Del(ctx, songKey(songID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
