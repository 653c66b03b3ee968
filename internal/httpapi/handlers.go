package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"planrag/internal/catalog"
	"planrag/internal/domain"
	"planrag/internal/ingestpipeline"
	"planrag/internal/ragpipeline"
	"planrag/internal/rerr"
)

var errUnauthorized = errors.New("missing or invalid admin credentials")

type chatRequest struct {
	Question    string  `json:"question"`
	PartyFilter string  `json:"partyFilter"`
	TopK        *int    `json:"topK"`
	MinScore    float64 `json:"minScore"`
	Stream      bool    `json:"stream"`
}

func (req chatRequest) options() ragpipeline.Options {
	topK := -1
	if req.TopK != nil {
		topK = *req.TopK
	}
	return ragpipeline.Options{PartyFilter: req.PartyFilter, TopK: topK, MinScore: req.MinScore}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.rag.Query(r.Context(), req.Question, req.options())
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleChatStream emits server-sent events: a "sources" event once the
// context is built plus a terminal "token"/"done" sequence. The query and
// semantic-search stages aren't separately streamable, so the handler
// computes the full response once and replays it as deltas, keeping the
// client contract (it may see "sources" before or after the first "token")
// satisfied without requiring the LLM provider's Stream path to carry
// citation metadata of its own.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	resp, err := s.rag.Query(r.Context(), req.Question, req.options())
	if err != nil {
		writeSSE(w, "error", map[string]string{"message": err.Error()})
		flusher.Flush()
		return
	}

	writeSSE(w, "sources", resp.Sources)
	flusher.Flush()

	for _, chunk := range chunkText(resp.Answer, 40) {
		writeSSE(w, "token", map[string]string{"text": chunk})
		flusher.Flush()
	}
	writeSSE(w, "done", map[string]any{"confidence": resp.Confidence, "metadata": resp.Metadata})
	flusher.Flush()
}

func chunkText(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

type compareRequest struct {
	Topic   string   `json:"topic"`
	Parties []string `json:"parties"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.compare.Compare(r.Context(), req.Topic, req.Parties, nil)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := s.parties.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"parties": parties})
}

func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	party, ok, err := s.parties.Get(r.Context(), slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, catalog.ErrPartyNotFound)
		return
	}
	respondJSON(w, http.StatusOK, party)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	type withCount struct {
		domain.Document
		ChunkCount int `json:"chunkCount"`
	}
	out := make([]withCount, 0, len(docs))
	for _, d := range docs {
		count, _ := s.vectorStore.CountChunks(r.Context(), map[string]string{"document_id": d.ID})
		out = append(out, withCount{Document: d, ChunkCount: count})
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if _, ok, err := s.documents.GetDocument(r.Context(), docID); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	} else if !ok {
		respondError(w, http.StatusNotFound, rerr.New(rerr.KindNotFound, "document %s not found", docID))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	count, err := s.vectorStore.CountChunks(r.Context(), map[string]string{"document_id": docID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"documentId": docID,
		"page":       page,
		"perPage":    perPage,
		"totalChunks": count,
	})
}

type ingestRequest struct {
	URL       string `json:"url"`
	DocID     string `json:"docId"`
	PartySlug string `json:"partySlug"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	result := s.ingest.Ingest(r.Context(), ingestpipeline.Request{URL: req.URL, DocID: req.DocID, PartySlug: req.PartySlug}, ingestpipeline.Options{})
	status := http.StatusOK
	if result.Status == ingestpipeline.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	batch := make([]ingestpipeline.Request, 0, len(reqs))
	for _, req := range reqs {
		batch = append(batch, ingestpipeline.Request{URL: req.URL, DocID: req.DocID, PartySlug: req.PartySlug})
	}
	results := s.ingest.IngestBatch(r.Context(), batch, ingestpipeline.Options{})
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

// handleDiagThresholds reports, for a set of candidate similarity-threshold
// cut points, how many of the vector store's currently populated chunks
// would survive were this the similarity floor for a sample query — the
// operator tool the quality-threshold-tuning design note asks for. The
// sample query defaults to a generic government-plan question but accepts
// ?q= to probe a specific one.
func (s *Server) handleDiagThresholds(w http.ResponseWriter, r *http.Request) {
	total, err := s.vectorStore.CountChunks(r.Context(), nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	cutPoints := []float64{0.2, 0.25, 0.3, 0.35, 0.4, 0.5, 0.6}
	if total == 0 {
		respondJSON(w, http.StatusOK, map[string]any{
			"totalChunks": 0,
			"cutPoints":   cutPoints,
			"survivors":   map[string]int{},
		})
		return
	}

	sampleQuery := r.URL.Query().Get("q")
	if sampleQuery == "" {
		sampleQuery = "plan de gobierno propuestas principales"
	}
	vectors, _, err := s.rag.Embedder.EmbedBatch(r.Context(), []string{sampleQuery})
	if err != nil || len(vectors) == 0 {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	results, err := s.vectorStore.SimilaritySearch(r.Context(), vectors[0], total, nil, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	survivors := make(map[string]int, len(cutPoints))
	for _, cut := range cutPoints {
		n := 0
		for _, res := range results {
			if res.Similarity > cut {
				n++
			}
		}
		survivors[strconv.FormatFloat(cut, 'f', -1, 64)] = n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"totalChunks": total,
		"sampleQuery": sampleQuery,
		"cutPoints":   cutPoints,
		"survivors":   survivors,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFromError(err error) int {
	switch rerr.KindOf(err) {
	case rerr.KindInvalidInput:
		return http.StatusBadRequest
	case rerr.KindNotFound:
		return http.StatusNotFound
	case rerr.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case rerr.KindContextOverflow, rerr.KindParseFailed, rerr.KindDownloadFailed, rerr.KindPersistenceError, rerr.KindConfigError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
