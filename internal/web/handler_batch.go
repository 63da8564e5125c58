package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jmordret/macave/internal/batch"
)

// handleCreateBatch starts a new batch session from multipart "photos"
// file parts, replacing any session already in progress.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["photos"]) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one photo is required")
		return
	}

	var photos []batch.Photo
	for _, fh := range r.MultipartForm.File["photos"] {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "failed to open photo")
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		_ = f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "failed to read photo")
			return
		}
		photos = append(photos, batch.Photo{Data: data})
	}

	view := s.service.Batch().CreateSession(r.Context(), r.FormValue("label"), photos)
	s.writeJSON(w, http.StatusCreated, toBatchSessionJSON(view))
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	view, ok := s.service.Batch().Current()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no active session")
		return
	}
	s.writeJSON(w, http.StatusOK, toBatchSessionJSON(view))
}

func (s *Server) handleClearBatch(w http.ResponseWriter, r *http.Request) {
	s.service.Batch().ClearSession()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchDone(w http.ResponseWriter, r *http.Request) {
	s.service.Batch().MarkDone(r.PathValue("sid"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchReconcile(w http.ResponseWriter, r *http.Request) {
	err := s.service.Batch().Reconcile(r.Context(), r.PathValue("sid"), r.PathValue("iid"))
	s.respondWithSession(w, err)
}

func (s *Server) handleBatchRetry(w http.ResponseWriter, r *http.Request) {
	err := s.service.Batch().RetryExtraction(r.Context(), r.PathValue("sid"), r.PathValue("iid"))
	s.respondWithSession(w, err)
}

func (s *Server) handleBatchIgnore(w http.ResponseWriter, r *http.Request) {
	err := s.service.Batch().IgnoreItem(r.PathValue("sid"), r.PathValue("iid"))
	s.respondWithSession(w, err)
}

func (s *Server) handleBatchResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BottleID string `json:"bottle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BottleID == "" {
		s.writeError(w, http.StatusBadRequest, "bottle_id is required")
		return
	}
	err := s.service.Batch().ResolveAmbiguous(r.PathValue("sid"), r.PathValue("iid"), req.BottleID)
	s.respondWithSession(w, err)
}

func (s *Server) handleBatchConsume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	err := s.service.ConfirmBatchConsumption(r.Context(), r.PathValue("sid"), r.PathValue("iid"), req.Note)
	s.respondWithSession(w, err)
}

func (s *Server) handleBatchAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ZoneID *string `json:"zone_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b, err := s.service.AddBottleFromBatchItem(r.Context(), r.PathValue("sid"), r.PathValue("iid"), req.ZoneID)
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, toBottleJSON(b))
}

// respondWithSession writes the current session snapshot, or the error that
// prevented the action.
func (s *Server) respondWithSession(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	view, ok := s.service.Batch().Current()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no active session")
		return
	}
	s.writeJSON(w, http.StatusOK, toBatchSessionJSON(view))
}
