package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deps bundles the handlers mounted on the API router
type Deps struct {
	Upload *UploadHandler
	List   *ListHandler
	Stream *StreamHandler
	Delete *DeleteHandler
	Health *HealthHandler
}

// NewRouter builds the API router with tracing on the data routes
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint (no tracing needed)
	router.Handle("/api/health", deps.Health).Methods(http.MethodGet)

	router.Handle("/api/upload",
		otelhttp.NewHandler(deps.Upload, "POST /api/upload")).Methods(http.MethodPost)
	router.Handle("/api/songs",
		otelhttp.NewHandler(deps.List, "GET /api/songs")).Methods(http.MethodGet)
	router.Handle("/api/songs/{id}/audio",
		otelhttp.NewHandler(deps.Stream, "GET /api/songs/{id}/audio")).Methods(http.MethodGet)
	router.Handle("/api/songs/{id}",
		otelhttp.NewHandler(deps.Delete, "DELETE /api/songs/{id}")).Methods(http.MethodDelete)

	return router
}
