package handlers

import (
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soundvault/internal/errs"
	"soundvault/internal/ingest"
	"soundvault/internal/models"
)

// UploadHandler handles song upload requests
type UploadHandler struct {
	pipeline      *ingest.Pipeline
	maxUploadSize int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(pipeline *ingest.Pipeline, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{
		pipeline:      pipeline,
		maxUploadSize: maxUploadSize,
	}
}

// UploadResponse is returned for a successful upload
type UploadResponse struct {
	Message string       `json:"message"`
	Song    *models.Song `json:"song"`
	FileID  string       `json:"fileId"`
}

// ServeHTTP handles POST /api/upload. The multipart body is consumed as
// a stream: metadata fields first, then the audio part is piped through
// the ingest pipeline without buffering the whole file.
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "upload_song",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	// Hard cap on the request body; some slack over the audio ceiling
	// for the multipart framing and metadata fields
	r.Body = http.MaxBytesReader(w, r.Body, uh.maxUploadSize+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "expected a multipart upload", err))
		return
	}

	fields := map[string]string{}
	var audioPart *multipart.Part
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, errs.Wrap(errs.KindValidation, "malformed multipart body", err))
			return
		}
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 4096))
			if err != nil {
				writeError(w, errs.Wrap(errs.KindValidation, "failed to read form field", err))
				return
			}
			fields[part.FormName()] = string(value)
			continue
		}
		// First file part is the audio; metadata fields must precede it
		audioPart = part
		break
	}
	if audioPart == nil {
		writeError(w, errs.New(errs.KindValidation, "missing audio file part"))
		return
	}
	defer audioPart.Close()

	duration := 0
	if fields["duration"] != "" {
		duration, err = strconv.Atoi(fields["duration"])
		if err != nil {
			writeError(w, errs.Wrap(errs.KindValidation, "duration must be an integer number of seconds", err))
			return
		}
	}

	declaredSize := r.ContentLength
	if declaredSize < 0 {
		declaredSize = 0
	}

	span.SetAttributes(
		attribute.String("file_name", audioPart.FileName()),
		attribute.String("title", fields["title"]),
	)

	result, err := uh.pipeline.Upload(ctx, &ingest.UploadRequest{
		Filename:     audioPart.FileName(),
		ContentType:  audioPart.Header.Get("Content-Type"),
		DeclaredSize: declaredSize,
		Title:        fields["title"],
		Artist:       fields["artist"],
		Album:        fields["album"],
		DurationSecs: duration,
		Body:         audioPart,
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	log.Printf("Upload completed: %s (song %s)", audioPart.FileName(), result.Song.ID)
	writeJSON(w, http.StatusOK, UploadResponse{
		Message: "Song uploaded successfully",
		Song:    result.Song,
		FileID:  result.ObjectID,
	})
}
