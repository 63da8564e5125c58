package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmordret/macave/internal/photostore"
	"github.com/jmordret/macave/internal/service"
)

type Server struct {
	service    *service.CellarService
	photoStore photostore.Store
	mux        *http.ServeMux
	logger     *slog.Logger
}

func NewServer(svc *service.CellarService, ps photostore.Store, logger *slog.Logger) *Server {
	s := &Server{
		service:    svc,
		photoStore: ps,
		mux:        http.NewServeMux(),
		logger:     logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /zones", s.handleListZones)
	s.mux.HandleFunc("POST /zones", s.handleCreateZone)
	s.mux.HandleFunc("DELETE /zones/{id}", s.handleDeleteZone)

	s.mux.HandleFunc("GET /bottles", s.handleListBottles)
	s.mux.HandleFunc("POST /bottles", s.handleAddBottle)
	s.mux.HandleFunc("GET /bottles/{id}", s.handleGetBottle)
	s.mux.HandleFunc("PUT /bottles/{id}", s.handleUpdateBottle)
	s.mux.HandleFunc("POST /bottles/{id}/drink", s.handleDrinkBottle)
	s.mux.HandleFunc("GET /bottles/{id}/photo", s.handleGetPhoto)

	s.mux.HandleFunc("GET /cellar/groups", s.handleCellarGroups)
	s.mux.HandleFunc("GET /journal", s.handleJournal)
	s.mux.HandleFunc("GET /suggestions/domaines", s.handleDomaineSuggestions)
	s.mux.HandleFunc("GET /suggestions/appellations", s.handleAppellationSuggestions)

	s.mux.HandleFunc("POST /scan", s.handleScan)

	s.mux.HandleFunc("POST /batch", s.handleCreateBatch)
	s.mux.HandleFunc("GET /batch", s.handleGetBatch)
	s.mux.HandleFunc("DELETE /batch", s.handleClearBatch)
	s.mux.HandleFunc("POST /batch/{sid}/done", s.handleBatchDone)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/reconcile", s.handleBatchReconcile)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/retry", s.handleBatchRetry)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/ignore", s.handleBatchIgnore)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/resolve", s.handleBatchResolve)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/consume", s.handleBatchConsume)
	s.mux.HandleFunc("POST /batch/{sid}/items/{iid}/add", s.handleBatchAdd)
}

// securityHeaders sets standard security response headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
