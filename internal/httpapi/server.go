// Package httpapi exposes the RAG backend over HTTP: chat (sync and
// streaming), party comparison, party/document catalog browsing, ingestion,
// and health/diagnostics, per the external-interface surface.
package httpapi

import (
	"net/http"
	"time"

	"planrag/internal/catalog"
	"planrag/internal/compare"
	"planrag/internal/ingestpipeline"
	"planrag/internal/observability"
	"planrag/internal/ragpipeline"
	"planrag/internal/vectorstore"
)

// Server wires the RAG/ingestion pipelines and catalog behind a plain
// net/http mux, matching the teacher's routing idiom (stdlib ServeMux with
// Go 1.22 method+pattern routes, no external router dependency).
type Server struct {
	rag         *ragpipeline.Pipeline
	compare     *compare.Service
	ingest      *ingestpipeline.Pipeline
	parties     catalog.PartyRepo
	documents   catalog.DocumentRepo
	vectorStore vectorstore.Store
	adminToken  string
	mux         *http.ServeMux
	startedAt   time.Time
}

// Deps bundles everything the HTTP surface needs; adminToken empty disables
// the admin bearer-token check (suitable for local/dev).
type Deps struct {
	RAG         *ragpipeline.Pipeline
	Compare     *compare.Service
	Ingest      *ingestpipeline.Pipeline
	Parties     catalog.PartyRepo
	Documents   catalog.DocumentRepo
	VectorStore vectorstore.Store
	AdminToken  string
}

// NewServer builds the HTTP handler tree.
func NewServer(d Deps) *Server {
	s := &Server{
		rag:         d.RAG,
		compare:     d.Compare,
		ingest:      d.Ingest,
		parties:     d.Parties,
		documents:   d.Documents,
		vectorStore: d.VectorStore,
		adminToken:  d.AdminToken,
		mux:         http.NewServeMux(),
		startedAt:   time.Now(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/chat", observability.WithAccessLog(s.handleChat))
	s.mux.HandleFunc("POST /api/chat/stream", observability.WithAccessLog(s.handleChatStream))
	s.mux.HandleFunc("POST /api/compare", observability.WithAccessLog(s.handleCompare))
	s.mux.HandleFunc("GET /api/parties", observability.WithAccessLog(s.handleListParties))
	s.mux.HandleFunc("GET /api/parties/{slug}", observability.WithAccessLog(s.handleGetParty))
	s.mux.HandleFunc("GET /api/documents", observability.WithAccessLog(s.handleListDocuments))
	s.mux.HandleFunc("GET /api/documents/{id}/chunks", observability.WithAccessLog(s.requireAdmin(s.handleDocumentChunks)))
	s.mux.HandleFunc("POST /api/ingest", observability.WithAccessLog(s.requireAdmin(s.handleIngest)))
	s.mux.HandleFunc("POST /api/ingest/batch", observability.WithAccessLog(s.requireAdmin(s.handleIngestBatch)))
	s.mux.HandleFunc("GET /api/health", observability.WithAccessLog(s.handleHealth))
	s.mux.HandleFunc("GET /api/diag/thresholds", observability.WithAccessLog(s.requireAdmin(s.handleDiagThresholds)))
}

// requireAdmin enforces a bearer token on admin-only routes; a blank
// adminToken (local/dev) disables the check entirely.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.adminToken {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next(w, r)
	}
}
