// Package api exposes the training service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fedbook/fedbook/internal/controller"
	"github.com/fedbook/fedbook/internal/datasets"
	"github.com/fedbook/fedbook/internal/domain"
	"github.com/fedbook/fedbook/internal/logging"
	"github.com/fedbook/fedbook/internal/metrics"
	"github.com/fedbook/fedbook/internal/session"
)

// Server provides the HTTP API for sessions, cells and kernels
type Server struct {
	sessions *session.Manager
	cells    *controller.Controller
	datasets *datasets.Registry
	metrics  *metrics.Metrics
	mux      *http.ServeMux
	addr     string
}

func New(sessions *session.Manager, cells *controller.Controller, registry *datasets.Registry, addr string) *Server {
	s := &Server{
		sessions: sessions,
		cells:    cells,
		datasets: registry,
		metrics:  metrics.Global(),
		mux:      http.NewServeMux(),
		addr:     addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("GET /datasets", s.handleListDatasets)

	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("PUT /sessions/{id}/datasets", s.handleSetDatasets)

	s.mux.HandleFunc("GET /sessions/{id}/cells", s.handleListCells)
	s.mux.HandleFunc("POST /sessions/{id}/cells", s.handleAddCell)
	s.mux.HandleFunc("PUT /sessions/{id}/cells/{cellID}", s.handleUpdateCell)
	s.mux.HandleFunc("DELETE /sessions/{id}/cells/{cellID}", s.handleDeleteCell)
	s.mux.HandleFunc("POST /sessions/{id}/cells/{cellID}/execute", s.handleExecuteCell)

	s.mux.HandleFunc("POST /sessions/{id}/review", s.handleReviewCells)
	s.mux.HandleFunc("POST /sessions/{id}/kernel/shutdown", s.handleShutdownKernel)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	folders, err := s.datasets.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []datasets.Folder{}
	}
	json.NewEncoder(w).Encode(folders)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		NotebookName string `json:"notebook_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Name, req.NotebookName)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleSetDatasets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folders []string `json:"folders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.datasets.Validate(req.Folders); err != nil {
		writeError(w, domain.Validationf("%v", err))
		return
	}

	if err := s.sessions.SetDatasetFolders(r.Context(), r.PathValue("id"), req.Folders); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCells(w http.ResponseWriter, r *http.Request) {
	cells, err := s.cells.Cells(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if cells == nil {
		cells = []*domain.Cell{}
	}
	json.NewEncoder(w).Encode(cells)
}

func (s *Server) handleAddCell(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind domain.CellKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = domain.KindCode
	}

	cell, err := s.cells.AddCell(r.Context(), r.PathValue("id"), req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cell)
}

func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sessionID, cellID := r.PathValue("id"), r.PathValue("cellID")
	if err := s.cells.UpdateCellCode(r.Context(), sessionID, cellID, req.Code); err != nil {
		writeError(w, err)
		return
	}

	cell, err := s.cells.Cell(r.Context(), sessionID, cellID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(cell)
}

func (s *Server) handleDeleteCell(w http.ResponseWriter, r *http.Request) {
	if err := s.cells.DeleteCell(r.Context(), r.PathValue("id"), r.PathValue("cellID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecuteCell(w http.ResponseWriter, r *http.Request) {
	cell, err := s.cells.ExecuteCell(r.Context(), r.PathValue("id"), r.PathValue("cellID"))

	// A policy rejection is a normal business outcome: the cell comes
	// back with its rejected state rather than an HTTP error.
	var rejErr *domain.RejectionError
	if errors.As(err, &rejErr) {
		json.NewEncoder(w).Encode(cell)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(cell)
}

func (s *Server) handleReviewCells(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CellIDs []string `json:"cell_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.cells.ReviewCells(r.Context(), r.PathValue("id"), req.CellIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func (s *Server) handleShutdownKernel(w http.ResponseWriter, r *http.Request) {
	if err := s.cells.ShutdownKernel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "shutdown"})
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr *domain.ValidationError
	var protoErr *domain.ProtocolError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrCellNotFound):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.As(err, &protoErr):
		status = http.StatusBadGateway
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// Middleware for CORS
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Middleware for JSON content type
func JSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Middleware for request logging. Tags each request with an ID and
// emits a timed event when the handler returns.
func Logging(next http.Handler) http.Handler {
	log := logging.New("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := logging.NewRequestID()
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), reqID)))

		log.WithRequest(reqID).TimedEvent("request", start, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	})
}

// Handler returns the fully wrapped handler stack
func (s *Server) Handler() http.Handler {
	return Logging(CORS(JSON(s.mux)))
}

// Serve starts the server and shuts it down when ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.ListenAndServe()
}
