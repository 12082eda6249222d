package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fastrack/internal/app"
	"fastrack/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// writeServiceError maps application errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, app.ErrAlreadyFasting),
		errors.Is(err, app.ErrAlreadyFastedToday),
		errors.Is(err, app.ErrNotFasting),
		errors.Is(err, app.ErrFastEndsBeforeStart),
		errors.Is(err, app.ErrWeeklyPassUsed),
		errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrUsernameTaken),
		errors.Is(err, app.ErrSamePassword),
		errors.Is(err, app.ErrWeightAlreadyToday),
		errors.Is(err, app.ErrObjectiveAlreadyReached),
		errors.Is(err, domain.ErrStaleState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, app.ErrMinutesOutOfRange),
		errors.Is(err, app.ErrInvalidMeasurement),
		errors.Is(err, app.ErrInvalidSubscription):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// userResponse is the account representation returned to clients. The
// password hash and state version never leave the server.
type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`

	IsFasting                  bool       `json:"isFasting"`
	LastTimeUserStartedFasting *time.Time `json:"lastTimeUserStartedFasting,omitempty"`
	LastTimeUserEndedFasting   *time.Time `json:"lastTimeUserEndedFasting,omitempty"`
	FastDesiredStartMinutes    int        `json:"fastDesiredStartTimeInMinutes"`
	FastObjectiveMinutes       int        `json:"fastObjectiveInMinutes"`
	HasWeeklyPass              bool       `json:"hasWeeklyPass"`
	FastingStreak              int        `json:"fastingStreak"`
	TotalGoalReached           int        `json:"totalGoalReached"`
	TimezoneOffsetMs           int64      `json:"timezoneOffsetInMs"`

	HeightCm          float64    `json:"heightInCm"`
	WeightKg          float64    `json:"weightInKg"`
	WeightObjectiveKg float64    `json:"weightObjectiveInKg"`
	StartingWeightKg  float64    `json:"startingWeightObjectiveInKg"`
	LastWeightEntry   *time.Time `json:"lastWeightEntryDate,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:                      u.ID,
		Email:                   u.Email,
		Username:                u.Username,
		CreatedAt:               u.CreatedAt,
		IsFasting:               u.IsFasting,
		FastDesiredStartMinutes: u.FastDesiredStartMinutes,
		FastObjectiveMinutes:    u.FastObjectiveMinutes,
		HasWeeklyPass:           u.HasWeeklyPass,
		FastingStreak:           u.FastingStreak,
		TotalGoalReached:        u.TotalGoalReached,
		TimezoneOffsetMs:        u.TimezoneOffsetMs,
		HeightCm:                u.HeightCm,
		WeightKg:                u.WeightKg,
		WeightObjectiveKg:       u.WeightObjectiveKg,
		StartingWeightKg:        u.StartingWeightKg,
	}
	if !u.LastFastStart.IsZero() {
		t := u.LastFastStart
		resp.LastTimeUserStartedFasting = &t
	}
	if !u.LastFastEnd.IsZero() {
		t := u.LastFastEnd
		resp.LastTimeUserEndedFasting = &t
	}
	if !u.LastWeightEntry.IsZero() {
		t := u.LastWeightEntry
		resp.LastWeightEntry = &t
	}
	return resp
}

// requirePost rejects non-POST methods. Reads go through requireGet.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return false
	}
	return true
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return false
	}
	return true
}
