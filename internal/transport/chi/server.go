package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contexta-cloud/contexta/internal/domain"
	"github.com/contexta-cloud/contexta/internal/metrics"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeInvalidQuery     = "invalid_query"
	codeStoreUnavailable = "store_unavailable"
	codeInternal         = "internal_error"
)

// Engine is the retrieval entry point the server exposes.
type Engine interface {
	Retrieve(ctx context.Context, q domain.Query, history []domain.Turn) (*domain.RetrievalResult, error)
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RetrieveRequest is the POST /v1/retrieve body.
type RetrieveRequest struct {
	Text                string        `json:"text"`
	ContainerIDs        []string      `json:"container_ids,omitempty"`
	DocumentIDs         []string      `json:"document_ids,omitempty"`
	Strategy            string        `json:"strategy,omitempty"`
	MaxChunks           int           `json:"max_chunks,omitempty"`
	SimilarityThreshold float64       `json:"similarity_threshold,omitempty"`
	ContextTokenBudget  int           `json:"context_token_budget,omitempty"`
	History             []domain.Turn `json:"history,omitempty"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes the retrieval engine over HTTP.
type Server struct {
	engine Engine
	pinger Pinger
	logger *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(engine Engine, pinger Pinger, logger *zap.Logger) *Server {
	return &Server{engine: engine, pinger: pinger, logger: logger}
}

// Routes mounts all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/retrieve", s.retrievePost)
	r.Get("/v1/retrieve", s.retrieveGet)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Router builds a standalone router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	s.Routes(r)
	return r
}

func (s *Server) retrievePost(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.retrieve(w, r, &req)
}

// retrieveGet binds the retrieval parameters from the query string. History
// is POST-only; GET serves simple single-shot lookups.
func (s *Server) retrieveGet(w http.ResponseWriter, r *http.Request) {
	req := RetrieveRequest{}
	q := r.URL.Query()

	bindings := []struct {
		name     string
		explode  bool
		required bool
		dest     interface{}
	}{
		{"text", false, true, &req.Text},
		{"container_ids", false, false, &req.ContainerIDs},
		{"document_ids", false, false, &req.DocumentIDs},
		{"strategy", false, false, &req.Strategy},
		{"max_chunks", false, false, &req.MaxChunks},
		{"similarity_threshold", false, false, &req.SimilarityThreshold},
		{"context_token_budget", false, false, &req.ContextTokenBudget},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", b.explode, b.required, b.name, q, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest,
				"invalid query parameter "+b.name+": "+err.Error())
			return
		}
	}

	s.retrieve(w, r, &req)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request, req *RetrieveRequest) {
	query := domain.Query{
		Text:                req.Text,
		ContainerIDs:        req.ContainerIDs,
		DocumentIDs:         req.DocumentIDs,
		Strategy:            domain.Strategy(req.Strategy),
		MaxChunks:           req.MaxChunks,
		SimilarityThreshold: req.SimilarityThreshold,
		ContextTokenBudget:  req.ContextTokenBudget,
	}

	result, err := s.engine.Retrieve(r.Context(), query, req.History)
	if err != nil {
		s.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, err.Error())
	default:
		s.logger.Error("retrieval failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
