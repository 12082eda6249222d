package adapthttp

import (
	"errors"
	"net/http"
	"time"
)

func (s *Server) handleSetWeight(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		WeightKg         float64   `json:"weightInKg"`
		Date             time.Time `json:"date"`
		TimezoneOffsetMs int64     `json:"timezoneOffsetInMs"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, errors.New("date is required"))
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.health.SetWeight(r.Context(), user.ID, req.WeightKg, req.Date, req.TimezoneOffsetMs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleSetHeight(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		HeightCm float64 `json:"heightInCm"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.health.SetHeight(r.Context(), user.ID, req.HeightCm)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleSetWeightObjective(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		WeightObjectiveKg float64 `json:"weightObjectiveInKg"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.health.SetWeightObjective(r.Context(), user.ID, req.WeightObjectiveKg)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleWeightHistoric(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	user := userFromContext(r.Context())
	entries, err := s.health.WeightHistory(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
