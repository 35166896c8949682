package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/claude/treningslogg/internal/ingest/alpha"
	"github.com/claude/treningslogg/internal/ingest/hae"
	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/mcp"
	"github.com/claude/treningslogg/internal/storage"
	"github.com/go-chi/chi/v5"
)

// ImportLogStore records import outcomes. *storage.DB implements it; the
// sqlite backend does not, and import history is then unavailable.
type ImportLogStore interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	logbook    *logbook.Service
	users      UserStore
	importLogs ImportLogStore
	hae        *hae.Provider
	alpha      *alpha.Provider
	log        *slog.Logger
	apiKey     string
	router     chi.Router
	whois      WhoIser
	mcp        http.Handler

	importMu     sync.Mutex
	activeImport *haeImportState
}

// New creates a new Server with all routes configured. When users also
// implements ImportLogStore, imports are recorded.
func New(svc *logbook.Service, users UserStore, haeProvider *hae.Provider, alphaProvider *alpha.Provider, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		logbook: svc,
		users:   users,
		hae:     haeProvider,
		alpha:   alphaProvider,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	if ils, ok := users.(ImportLogStore); ok {
		s.importLogs = ils
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the local dev user to tailnet WhoIs.
func (s *Server) SetTailscale(wc WhoIser) {
	s.whois = wc
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Machine clients (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Use(s.identity)
		r.Post("/api/v1/ingest/alpha", s.handleAlphaIngest)
		r.Post("/api/v1/ingest/hae", s.handleHAEIngest)
		r.Put("/api/v1/sync/sessions/{id}", s.handleSyncSession)
		r.Put("/api/v1/sync/templates/{id}", s.handleSyncTemplate)
		r.Delete("/api/v1/sync/templates/{id}", s.handleSyncDeleteTemplate)
	})

	// Interactive API (tsnet handles access)
	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/api/v1/me", s.handleMe)

		r.Get("/api/v1/templates", s.handleListTemplates)
		r.Post("/api/v1/templates", s.handleSaveTemplate)
		r.Put("/api/v1/templates/{id}/name", s.handleRenameTemplate)
		r.Delete("/api/v1/templates/{id}", s.handleDeleteTemplate)

		r.Post("/api/v1/drafts", s.handleStartDraft)

		r.Get("/api/v1/sessions", s.handleListSessions)
		r.Post("/api/v1/sessions", s.handleSaveSession)
		r.Get("/api/v1/sessions/{id}", s.handleGetSession)
		r.Put("/api/v1/sessions/{id}", s.handleUpdateSession)
		r.Delete("/api/v1/sessions/{id}", s.handleDeleteSession)

		r.Get("/api/v1/exercises/last", s.handleLastExercise)
		r.Get("/api/v1/statistics", s.handleStatistics)
		r.Get("/api/v1/import-logs", s.handleImportLogs)

		r.Post("/api/v1/import/hae-tcp/check", s.handleCheckHAE)
		r.Post("/api/v1/import/hae-tcp", s.handleStartHAEImport)
		r.Get("/api/v1/import/hae-tcp/status", s.handleHAEImportStatus)
		r.Get("/api/v1/import/hae-tcp/events", s.handleHAEImportEvents)
		r.Post("/api/v1/import/hae-tcp/cancel", s.handleCancelHAEImport)

		r.Handle("/mcp", http.HandlerFunc(s.handleMCP))
	})
}

// identity picks tailnet identity once SetTailscale was called.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.users, s.log)(next).ServeHTTP(w, r)
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mcp not enabled"})
		return
	}
	ctx := mcp.WithUserID(r.Context(), userIDFromContext(r))
	s.mcp.ServeHTTP(w, r.WithContext(ctx))
}
