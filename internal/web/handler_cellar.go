package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/jmordret/macave/internal/domain"
	"github.com/jmordret/macave/internal/service"
)

// maxUploadBytes bounds label photo uploads before resize.
const maxUploadBytes = 20 << 20

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.service.ListZones(r.Context())
	if err != nil {
		s.logger.Error("failed to list zones", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list zones")
		return
	}
	out := make([]zoneJSON, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneJSON{ID: z.ID, Name: z.Name, CreatedAt: z.CreatedAt})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	zone, err := s.service.CreateZone(r.Context(), req.Name)
	if err != nil {
		s.logger.Error("failed to create zone", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create zone")
		return
	}
	s.writeJSON(w, http.StatusCreated, zoneJSON{ID: zone.ID, Name: zone.Name, CreatedAt: zone.CreatedAt})
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteZone(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, http.StatusNotFound, "zone not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBottles(w http.ResponseWriter, r *http.Request) {
	bottles, err := s.service.ListInStock(r.Context())
	if err != nil {
		s.logger.Error("failed to list bottles", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list bottles")
		return
	}
	s.writeJSON(w, http.StatusOK, toBottlesJSON(bottles))
}

// bottleRequest is the writable subset of a bottle record.
type bottleRequest struct {
	Domaine     *string         `json:"domaine"`
	Cuvee       *string         `json:"cuvee"`
	Appellation *string         `json:"appellation"`
	Millesime   *int            `json:"millesime"`
	Couleur     *domain.Couleur `json:"couleur"`
	Region      *string         `json:"region"`
	Cepage      *string         `json:"cepage"`
	ZoneID      *string         `json:"zone_id"`
	Position    *positionJSON   `json:"position"`
	Price       *float64        `json:"price"`
	TastingNote string          `json:"tasting_note"`
}

func (req *bottleRequest) apply(b *domain.Bottle) {
	b.Domaine = req.Domaine
	b.Cuvee = req.Cuvee
	b.Appellation = req.Appellation
	b.Millesime = req.Millesime
	b.Couleur = req.Couleur
	b.Region = req.Region
	b.Cepage = req.Cepage
	b.ZoneID = req.ZoneID
	b.Price = req.Price
	b.TastingNote = req.TastingNote
	if req.Position != nil {
		b.Position = &domain.Position{Row: req.Position.Row, Depth: req.Position.Depth}
	} else {
		b.Position = nil
	}
}

// handleAddBottle accepts multipart form data: a "bottle" JSON part and an
// optional "photo" file part.
func (s *Server) handleAddBottle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	var req bottleRequest
	if err := json.Unmarshal([]byte(r.FormValue("bottle")), &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid bottle payload")
		return
	}
	b := &domain.Bottle{}
	req.apply(b)

	var photoData []byte
	if file, _, err := r.FormFile("photo"); err == nil {
		photoData, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		_ = file.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "failed to read photo")
			return
		}
	}

	created, err := s.service.AddBottle(r.Context(), service.AddBottleInput{Bottle: b, PhotoData: photoData})
	if err != nil {
		s.logger.Error("failed to add bottle", "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, toBottleJSON(created))
}

func (s *Server) handleGetBottle(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBottle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to get bottle", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get bottle")
		return
	}
	if b == nil {
		s.writeError(w, http.StatusNotFound, "bottle not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toBottleJSON(b))
}

func (s *Server) handleUpdateBottle(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBottle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to get bottle", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get bottle")
		return
	}
	if b == nil {
		s.writeError(w, http.StatusNotFound, "bottle not found")
		return
	}

	var req bottleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.apply(b)

	updated, err := s.service.UpdateBottle(r.Context(), b)
	if err != nil {
		s.logger.Error("failed to update bottle", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update bottle")
		return
	}
	s.writeJSON(w, http.StatusOK, toBottleJSON(updated))
}

func (s *Server) handleDrinkBottle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	// Body is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.service.ConsumeBottle(r.Context(), r.PathValue("id"), req.Note); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBottle(r.Context(), r.PathValue("id"))
	if err != nil || b == nil || b.PhotoKey == "" {
		s.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	rc, mime, err := s.photoStore.Get(r.Context(), b.PhotoKey)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", mime)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("failed to stream photo", "error", err)
	}
}

func (s *Server) handleCellarGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.CellarGroups(r.Context())
	if err != nil {
		s.logger.Error("failed to group cellar", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to group cellar")
		return
	}
	s.writeJSON(w, http.StatusOK, toGroupsJSON(groups))
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	groups, err := s.service.Journal(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load journal")
		return
	}
	s.writeJSON(w, http.StatusOK, toGroupsJSON(groups))
}

func (s *Server) handleDomaineSuggestions(w http.ResponseWriter, r *http.Request) {
	values, err := s.service.DomaineSuggestions(r.Context())
	if err != nil {
		s.logger.Error("failed to load suggestions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load suggestions")
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleAppellationSuggestions(w http.ResponseWriter, r *http.Request) {
	values, err := s.service.AppellationSuggestions(r.Context())
	if err != nil {
		s.logger.Error("failed to load suggestions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load suggestions")
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

// handleScan runs the single-photo capture flow: multipart "photo" part in,
// extraction plus match classification out.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	_ = file.Close()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	result, err := s.service.ScanLabel(r.Context(), data)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := struct {
		Extraction *domain.WineExtraction `json:"extraction"`
		MatchType  string                 `json:"match_type"`
		Primary    *bottleJSON            `json:"primary_match,omitempty"`
		Candidates []bottleJSON           `json:"candidates,omitempty"`
	}{
		Extraction: result.Extraction,
		MatchType:  string(result.Match.Type),
	}
	if result.Match.Primary != nil {
		pj := toBottleJSON(result.Match.Primary)
		resp.Primary = &pj
	}
	for _, alt := range result.Match.Alternatives {
		resp.Candidates = append(resp.Candidates, toBottleJSON(alt))
	}
	s.writeJSON(w, http.StatusOK, resp)
}
