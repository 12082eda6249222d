package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fastrack/internal/domain"
)

// dateTimeRequest is the shared body of the three session transitions: the
// client-reported instant and its current UTC offset.
type dateTimeRequest struct {
	Date             time.Time `json:"date"`
	TimezoneOffsetMs int64     `json:"timezoneOffsetInMs"`
}

func (req *dateTimeRequest) validate() error {
	if req.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

func (s *Server) handleFastState(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	user, err := s.fast.State(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleStartFasting(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.fast.StartFasting)
}

func (s *Server) handleStopFasting(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.fast.StopFasting)
}

func (s *Server) handleUseWeeklyPass(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.fast.UseWeeklyPass)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID int64, at time.Time, tzOffsetMs int64) (*domain.User, error)) {
	if !requirePost(w, r) {
		return
	}

	var req dateTimeRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	updated, err := op(r.Context(), user.ID, req.Date, req.TimezoneOffsetMs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleSetDesiredStartTime(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Minutes int `json:"fastDesiredStartTimeInMinutes"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.fast.SetDesiredStartTime(r.Context(), user.ID, req.Minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleSetObjective(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Minutes int `json:"fastObjectiveInMinutes"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	updated, err := s.fast.SetObjective(r.Context(), user.ID, req.Minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleMonthFastEntries(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Month int `json:"month"`
		Year  int `json:"year"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1970 {
		writeError(w, http.StatusUnprocessableEntity, errors.New("month must be 1-12 and year 1970 or later"))
		return
	}

	user := userFromContext(r.Context())
	slots, err := s.fast.MonthEntries(r.Context(), user.ID, req.Year, time.Month(req.Month))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": slots})
}
