// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"fastrack/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates that the email is already registered.
	ErrEmailTaken = errors.New("email already taken")
	// ErrUsernameTaken indicates that the username is already registered.
	ErrUsernameTaken = errors.New("username not available")
	// ErrSamePassword indicates that the new password equals the current one.
	ErrSamePassword = errors.New("the new password is the same")
)

// Fasting defaults seeded at registration.
const (
	defaultObjectiveMinutes    = 14 * 60
	defaultDesiredStartMinutes = 18 * 60
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

// AuthService handles account management and session issuance.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository) *AuthService {
	return &AuthService{users: users, sessions: sessions}
}

// Register creates an account with the fasting defaults and the
// client-reported timezone offset.
func (s *AuthService) Register(ctx context.Context, email, username, password string, tzOffsetMs int64) (*domain.User, error) {
	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return s.users.Create(ctx, domain.User{
		Email:                   email,
		Username:                username,
		PasswordHash:            string(hash),
		FastObjectiveMinutes:    defaultObjectiveMinutes,
		FastDesiredStartMinutes: defaultDesiredStartMinutes,
		HasWeeklyPass:           true,
		TimezoneOffsetMs:        tzOffsetMs,
	})
}

// Login authenticates a user and creates a bearer session.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, user.ID, token, time.Now().Add(SessionTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession checks a bearer token and returns its user.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// LoginWithUser creates a session for an externally authenticated user
// (e.g. via SSO), provisioning the account on first login.
func (s *AuthService) LoginWithUser(ctx context.Context, email, username string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		// SSO users carry no local password.
		user, err = s.users.Create(ctx, domain.User{
			Email:                   email,
			Username:                username,
			FastObjectiveMinutes:    defaultObjectiveMinutes,
			FastDesiredStartMinutes: defaultDesiredStartMinutes,
			HasWeeklyPass:           true,
		})
		if err != nil {
			// Retry the lookup in case a concurrent login created the row.
			user, err = s.users.GetByEmail(ctx, email)
			if err != nil || user == nil {
				return "", err
			}
		}
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, user.ID, token, time.Now().Add(SessionTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// ChangeEmail updates the account email after confirming the password.
func (s *AuthService) ChangeEmail(ctx context.Context, userID int64, email, password string) error {
	user, err := s.confirmPassword(ctx, userID, password)
	if err != nil {
		return err
	}
	if taken, err := s.users.GetByEmail(ctx, email); err != nil {
		return err
	} else if taken != nil && taken.ID != user.ID {
		return ErrEmailTaken
	}
	return s.users.UpdateEmail(ctx, userID, email)
}

// ChangeUsername updates the account username after confirming the password.
func (s *AuthService) ChangeUsername(ctx context.Context, userID int64, username, password string) error {
	user, err := s.confirmPassword(ctx, userID, password)
	if err != nil {
		return err
	}
	if taken, err := s.users.GetByUsername(ctx, username); err != nil {
		return err
	} else if taken != nil && taken.ID != user.ID {
		return ErrUsernameTaken
	}
	return s.users.UpdateUsername(ctx, userID, username)
}

// ChangePassword replaces the account password. The new password must differ
// from the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, password, newPassword string) error {
	user, err := s.confirmPassword(ctx, userID, password)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return ErrSamePassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// DeleteAccount removes the user and everything it owns: fast ledger, health
// entries, push subscriptions and sessions.
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64, password string) error {
	if _, err := s.confirmPassword(ctx, userID, password); err != nil {
		return err
	}
	return s.users.Delete(ctx, userID)
}

func (s *AuthService) confirmPassword(ctx context.Context, userID int64, password string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
