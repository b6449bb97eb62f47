package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/catalog"
	"soundvault/internal/deleter"
	"soundvault/internal/errs"
	"soundvault/internal/models"
)

// ListHandler handles catalog listing and search
type ListHandler struct {
	catalog *catalog.Service
}

// NewListHandler creates a new list handler
func NewListHandler(cat *catalog.Service) *ListHandler {
	return &ListHandler{catalog: cat}
}

// ServeHTTP handles GET /api/songs?search=
func (lh *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "list_songs",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	search := r.URL.Query().Get("search")
	span.SetAttributes(attribute.String("search", search))

	songs, err := lh.catalog.List(ctx, search)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}

	span.SetAttributes(attribute.Int("song_count", len(songs)))
	writeJSON(w, http.StatusOK, songs)
}

// DeleteHandler handles song deletion
type DeleteHandler struct {
	deleter *deleter.Service
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(del *deleter.Service) *DeleteHandler {
	return &DeleteHandler{deleter: del}
}

// DeleteResponse is returned for a successful deletion
type DeleteResponse struct {
	Message string `json:"message"`
}

// ServeHTTP handles DELETE /api/songs/{id}
func (dh *DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "delete_song",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	songID, err := songIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	span.SetAttributes(attribute.String("song_id", songID))

	if err := dh.deleter.DeleteSong(ctx, songID); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Song deleted successfully"})
}

func songIDFromPath(r *http.Request) (string, error) {
	songID := mux.Vars(r)["id"]
	if _, err := uuid.Parse(songID); err != nil {
		return "", errs.New(errs.KindValidation, fmt.Sprintf("invalid song id: %q", songID))
	}
	return songID, nil
}
