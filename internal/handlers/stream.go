package handlers

import (
	"fmt"
	"log"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/errs"
	"soundvault/internal/streamer"
)

// StreamHandler handles audio playback requests
type StreamHandler struct {
	streamer *streamer.Service
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(str *streamer.Service) *StreamHandler {
	return &StreamHandler{streamer: str}
}

// ServeHTTP handles GET /api/songs/{id}/audio. Headers go out before the
// first chunk; once bytes are flowing, a failure can only cut the
// connection short.
func (sh *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "stream_song",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	songID, err := songIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	span.SetAttributes(attribute.String("song_id", songID))

	sess, err := sh.streamer.Open(ctx, songID)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	defer sess.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", sess.Size()))
	w.WriteHeader(http.StatusOK)

	if err := sess.SendTo(w); err != nil {
		span.RecordError(err)
		if errs.IsKind(err, errs.KindStreaming) {
			// Too late for a status code; the early close is the signal
			log.Printf("Stream for song %s cut short: %v", songID, err)
			return
		}
		log.Printf("Stream for song %s failed before first byte: %v", songID, err)
	}
}
