// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"fastrack/internal/app"
)

// OIDCConfig carries the optional SSO provider wiring. When Enabled is false
// the SSO routes answer 404.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth       *app.AuthService
	fast       *app.FastService
	health     *app.HealthService
	push       *app.PushService
	oidcConfig OIDCConfig
	log        *zap.Logger
}

// New creates a Server wired to the given application services.
func New(auth *app.AuthService, fast *app.FastService, health *app.HealthService, push *app.PushService, oidcConfig OIDCConfig, log *zap.Logger) *Server {
	return &Server{
		auth:       auth,
		fast:       fast,
		health:     health,
		push:       push,
		oidcConfig: oidcConfig,
		log:        log,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("/config", s.handleConfig)

	api.HandleFunc("/user/register", s.handleRegister)
	api.HandleFunc("/user/login", s.handleLogin)
	api.HandleFunc("/user/sso/login", s.handleSSOLogin)
	api.HandleFunc("/user/sso/callback", s.handleSSOCallback)
	api.Handle("/user/logout", s.authed(s.handleLogout))
	api.Handle("/user/testToken", s.authed(s.handleTestToken))
	api.Handle("/user/getUserInfo", s.authed(s.handleGetUserInfo))
	api.Handle("/user/changeEmail", s.authed(s.handleChangeEmail))
	api.Handle("/user/changeUsername", s.authed(s.handleChangeUsername))
	api.Handle("/user/changePassword", s.authed(s.handleChangePassword))
	api.Handle("/user/deleteAccount", s.authed(s.handleDeleteAccount))

	api.Handle("/fast/state", s.authed(s.handleFastState))
	api.Handle("/fast/startFasting", s.authed(s.handleStartFasting))
	api.Handle("/fast/stopFasting", s.authed(s.handleStopFasting))
	api.Handle("/fast/useWeeklyPass", s.authed(s.handleUseWeeklyPass))
	api.Handle("/fast/setFastDesiredStartTime", s.authed(s.handleSetDesiredStartTime))
	api.Handle("/fast/setFastObjective", s.authed(s.handleSetObjective))
	api.Handle("/fast/getMonthFastEntries", s.authed(s.handleMonthFastEntries))

	api.Handle("/health/setWeight", s.authed(s.handleSetWeight))
	api.Handle("/health/setHeight", s.authed(s.handleSetHeight))
	api.Handle("/health/setWeightObjective", s.authed(s.handleSetWeightObjective))
	api.Handle("/health/getWeightHistoric", s.authed(s.handleWeightHistoric))

	api.Handle("/push/subscribe", s.authed(s.handleSubscribe))
	api.Handle("/push/unsubscribe", s.authed(s.handleUnsubscribe))

	root := http.NewServeMux()
	root.Handle("/api_v1/", http.StripPrefix("/api_v1", api))

	return s.withLogging(root)
}
