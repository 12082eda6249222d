package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	adapthttp "fastrack/internal/adapter/http"
	"fastrack/internal/adapter/postgres"
	"fastrack/internal/adapter/webpush"
	"fastrack/internal/app"
	"fastrack/internal/config"
	"fastrack/internal/domain"
	"fastrack/internal/logger"
	"fastrack/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	sessionRepo := postgres.NewSessionRepo(db)

	authSvc := app.NewAuthService(db, sessionRepo)
	fastSvc := app.NewFastService(db, db)
	healthSvc := app.NewHealthService(db, db)
	pushSvc := app.NewPushService(db, db)

	var pusher domain.Pusher = nopPusher{}
	if cfg.PushEnabled() {
		pusher = webpush.New(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	} else {
		log.Warn("VAPID keys not configured, reminders will not be delivered")
	}

	oidcConfig, err := buildOIDC(ctx, cfg)
	if err != nil {
		log.Fatal("oidc init failed", zap.Error(err))
	}

	sweeper := sweep.New(db, db, db, pusher, log.Named("sweep"), cfg.SweepInterval)
	go sweeper.Run(ctx)
	go cleanExpiredSessions(ctx, sessionRepo, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      adapthttp.New(authSvc, fastSvc, healthSvc, pushSvc, oidcConfig, log.Named("http")).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
}

func buildOIDC(ctx context.Context, cfg config.Config) (adapthttp.OIDCConfig, error) {
	if !cfg.SSOEnabled() {
		return adapthttp.OIDCConfig{}, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, err
	}

	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// cleanExpiredSessions drops expired session rows once an hour.
func cleanExpiredSessions(ctx context.Context, sessions domain.SessionRepository, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				log.Error("session cleanup failed", zap.Error(err))
			}
		}
	}
}

// nopPusher stands in when web-push credentials are absent.
type nopPusher struct{}

func (nopPusher) Send(context.Context, domain.PushSubscription, domain.EventKind, *domain.User) error {
	return nil
}
