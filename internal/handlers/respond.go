package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"go.opentelemetry.io/otel"

	"soundvault/internal/errs"
)

var tracer = otel.Tracer("soundvault-handlers")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

// errorBody is the JSON error envelope: a stable machine-readable kind
// plus a human-readable message
type errorBody struct {
	Error string    `json:"error"`
	Kind  errs.Kind `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), errorBody{
		Error: err.Error(),
		Kind:  errs.KindOf(err),
	})
}
