package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/catalog"
	"soundvault/internal/models"
)

// MySQLClient wraps catalog and chunk-metadata operations with tracing.
// It implements chunkstore.MetaStore and catalog.SongRepo.
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient initializes a new MySQL client and ensures the schema
func NewMySQLClient(dsn string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	client := &MySQLClient{db: db}
	if err := client.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Ping checks database liveness for the health endpoint
func (mc *MySQLClient) Ping(ctx context.Context) error {
	return mc.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they do not exist
func (mc *MySQLClient) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS objects (
			id VARCHAR(36) PRIMARY KEY,
			filename VARCHAR(512) NOT NULL,
			size BIGINT NOT NULL,
			chunk_count INT NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS object_chunks (
			object_id VARCHAR(36) NOT NULL,
			seq INT NOT NULL,
			size BIGINT NOT NULL,
			object_key VARCHAR(600) NOT NULL,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			PRIMARY KEY (object_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS songs (
			rowid BIGINT NOT NULL AUTO_INCREMENT,
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			artist VARCHAR(255) NOT NULL,
			album VARCHAR(255) NOT NULL,
			duration_secs INT NOT NULL,
			short_code VARCHAR(32) NOT NULL,
			object_id VARCHAR(36),
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uniq_rowid (rowid),
			UNIQUE KEY uniq_short_code (short_code)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := mc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// --- chunkstore.MetaStore ---

// InsertChunk inserts one chunk row with tracing
func (mc *MySQLClient) InsertChunk(ctx context.Context, chunk *models.ChunkInfo) error {
	ctx, span := tracer.Start(ctx, "mysql.insert_chunk",
		trace.WithAttributes(
			attribute.String("object_id", chunk.ObjectID),
			attribute.Int("seq", chunk.Seq),
		),
	)
	defer span.End()

	query := `INSERT INTO object_chunks (object_id, seq, size, object_key)
			  VALUES (?, ?, ?, ?)`

	_, err := mc.db.ExecContext(ctx, query, chunk.ObjectID, chunk.Seq, chunk.Size, chunk.ObjectKey)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunk row: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunk rows for an object ordered by sequence
func (mc *MySQLClient) GetChunks(ctx context.Context, objectID string) ([]*models.ChunkInfo, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_chunks",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	query := `SELECT object_id, seq, size, object_key
			  FROM object_chunks
			  WHERE object_id = ?
			  ORDER BY seq ASC`

	rows, err := mc.db.QueryContext(ctx, query, objectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.ChunkInfo
	for rows.Next() {
		var chunk models.ChunkInfo
		if err := rows.Scan(&chunk.ObjectID, &chunk.Seq, &chunk.Size, &chunk.ObjectKey); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	return chunks, nil
}

// DeleteChunks removes all chunk rows for an object
func (mc *MySQLClient) DeleteChunks(ctx context.Context, objectID string) error {
	ctx, span := tracer.Start(ctx, "mysql.delete_chunks",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	_, err := mc.db.ExecContext(ctx, `DELETE FROM object_chunks WHERE object_id = ?`, objectID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunk rows: %w", err)
	}
	return nil
}

// InsertDescriptor publishes an object descriptor
func (mc *MySQLClient) InsertDescriptor(ctx context.Context, desc *models.ObjectDescriptor) error {
	ctx, span := tracer.Start(ctx, "mysql.insert_descriptor",
		trace.WithAttributes(
			attribute.String("object_id", desc.ID),
			attribute.Int64("size", desc.Size),
		),
	)
	defer span.End()

	query := `INSERT INTO objects (id, filename, size, chunk_count, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := mc.db.ExecContext(ctx, query, desc.ID, desc.Filename, desc.Size, desc.ChunkCount, desc.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert object descriptor: %w", err)
	}
	return nil
}

// GetDescriptor retrieves a committed descriptor, (nil, nil) when absent
func (mc *MySQLClient) GetDescriptor(ctx context.Context, objectID string) (*models.ObjectDescriptor, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_descriptor",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	query := `SELECT id, filename, size, chunk_count, created_at FROM objects WHERE id = ?`

	var desc models.ObjectDescriptor
	err := mc.db.QueryRowContext(ctx, query, objectID).Scan(
		&desc.ID,
		&desc.Filename,
		&desc.Size,
		&desc.ChunkCount,
		&desc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query object descriptor: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return &desc, nil
}

// DeleteDescriptor removes an object descriptor
func (mc *MySQLClient) DeleteDescriptor(ctx context.Context, objectID string) error {
	ctx, span := tracer.Start(ctx, "mysql.delete_descriptor",
		trace.WithAttributes(attribute.String("object_id", objectID)),
	)
	defer span.End()

	_, err := mc.db.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, objectID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object descriptor: %w", err)
	}
	return nil
}

// StaleUncommittedObjects lists object ids with chunk rows but no
// descriptor, idle since before the cutoff
func (mc *MySQLClient) StaleUncommittedObjects(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx, span := tracer.Start(ctx, "mysql.stale_uncommitted_objects")
	defer span.End()

	query := `SELECT c.object_id
			  FROM object_chunks c
			  LEFT JOIN objects o ON o.id = c.object_id
			  WHERE o.id IS NULL
			  GROUP BY c.object_id
			  HAVING MAX(c.created_at) < ?`

	rows, err := mc.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query stale objects: %w", err)
	}
	defer rows.Close()

	var objectIDs []string
	for rows.Next() {
		var objectID string
		if err := rows.Scan(&objectID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan stale object id: %w", err)
		}
		objectIDs = append(objectIDs, objectID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating stale object ids: %w", err)
	}

	span.SetAttributes(attribute.Int("stale_count", len(objectIDs)))
	return objectIDs, nil
}

// --- catalog.SongRepo ---

// InsertSong inserts one song row. A short-code uniqueness violation is
// reported as catalog.ErrDuplicateCode so the caller can regenerate.
func (mc *MySQLClient) InsertSong(ctx context.Context, song *models.Song) error {
	ctx, span := tracer.Start(ctx, "mysql.insert_song",
		trace.WithAttributes(
			attribute.String("song_id", song.ID),
			attribute.String("short_code", song.ShortCode),
		),
	)
	defer span.End()

	query := `INSERT INTO songs (id, title, artist, album, duration_secs, short_code, object_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	objectID := sql.NullString{String: song.ObjectID, Valid: song.ObjectID != ""}
	_, err := mc.db.ExecContext(ctx, query,
		song.ID, song.Title, song.Artist, song.Album,
		song.DurationSecs, song.ShortCode, objectID, song.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("short code %q: %w", song.ShortCode, catalog.ErrDuplicateCode)
		}
		return fmt.Errorf("failed to insert song: %w", err)
	}
	return nil
}

// ListSongs returns songs newest first, optionally filtered by a
// case-insensitive substring over title, artist and album
func (mc *MySQLClient) ListSongs(ctx context.Context, search string) ([]*models.Song, error) {
	ctx, span := tracer.Start(ctx, "mysql.list_songs",
		trace.WithAttributes(attribute.String("search", search)),
	)
	defer span.End()

	query := `SELECT id, title, artist, album, duration_secs, short_code, object_id, created_at
			  FROM songs`
	var args []any
	if search != "" {
		query += ` WHERE LOWER(title) LIKE ? OR LOWER(artist) LIKE ? OR LOWER(album) LIKE ?`
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := mc.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating songs: %w", err)
	}

	span.SetAttributes(attribute.Int("song_count", len(songs)))
	return songs, nil
}

// GetSong retrieves one song by id, (nil, nil) when absent
func (mc *MySQLClient) GetSong(ctx context.Context, id string) (*models.Song, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_song",
		trace.WithAttributes(attribute.String("song_id", id)),
	)
	defer span.End()

	query := `SELECT id, title, artist, album, duration_secs, short_code, object_id, created_at
			  FROM songs WHERE id = ?`

	row := mc.db.QueryRowContext(ctx, query, id)
	song, err := scanSong(row)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("found", true))
	return song, nil
}

// DeleteSong removes one song row
func (mc *MySQLClient) DeleteSong(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "mysql.delete_song",
		trace.WithAttributes(attribute.String("song_id", id)),
	)
	defer span.End()

	_, err := mc.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete song: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*models.Song, error) {
	var song models.Song
	var objectID sql.NullString
	err := row.Scan(
		&song.ID,
		&song.Title,
		&song.Artist,
		&song.Album,
		&song.DurationSecs,
		&song.ShortCode,
		&objectID,
		&song.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}
	song.ObjectID = objectID.String
	return &song, nil
}
