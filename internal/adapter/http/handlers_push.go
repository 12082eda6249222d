package adapthttp

import (
	"errors"
	"net/http"
)

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	// Body mirrors the PushSubscription object browsers hand out.
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user := userFromContext(r.Context())
	sub, err := s.push.Subscribe(r.Context(), user.ID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": sub.ID, "endpoint": sub.Endpoint})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("endpoint is required"))
		return
	}

	if err := s.push.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
