package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"voxarch/internal/handlers"
	"voxarch/internal/indexer"
	"voxarch/internal/rag"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine   rag.Engine
	Pipeline *indexer.Pipeline
	Store    vectorstore.Store
	Sources  storage.SourceStore
	Chunks   storage.ChunkStore
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	queryHandler := handlers.NewQueryHandler(deps.Engine)
	queryAudioHandler := handlers.NewQueryAudioHandler(deps.Engine)
	reportHandler := handlers.NewReportHandler(deps.Pipeline)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Chunks)
	sourcesHandler := handlers.NewSourcesHandler(deps.Sources)
	sourceDetailHandler := handlers.NewSourceDetailHandler(deps.Sources, deps.Chunks)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/query", queryHandler)
		r.Method(http.MethodPost, "/query_audio", queryAudioHandler)
		r.Method(http.MethodGet, "/report", reportHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/sources", sourcesHandler)
		r.Method(http.MethodGet, "/sources/{filename}", sourceDetailHandler)
	})

	return r
}
