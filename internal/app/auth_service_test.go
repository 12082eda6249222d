package app_test

import (
	"context"
	"errors"
	"testing"

	"fastrack/internal/adapter/memory"
	"fastrack/internal/app"
)

func newAuthFixture(t *testing.T) (*app.AuthService, *memory.DB) {
	t.Helper()
	db := memory.New()
	return app.NewAuthService(db, db.NewSessionRepo()), db
}

func TestRegister(t *testing.T) {
	svc, _ := newAuthFixture(t)

	user, err := svc.Register(context.Background(), "a@example.com", "alice", "secret1", hourMs)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.FastObjectiveMinutes != 14*60 {
		t.Fatalf("default objective = %d, want %d", user.FastObjectiveMinutes, 14*60)
	}
	if user.FastDesiredStartMinutes != 18*60 {
		t.Fatalf("default desired start = %d, want %d", user.FastDesiredStartMinutes, 18*60)
	}
	if !user.HasWeeklyPass {
		t.Fatal("new accounts start with the weekly pass available")
	}
	if user.TimezoneOffsetMs != hourMs {
		t.Fatalf("offset = %d, want %d", user.TimezoneOffsetMs, hourMs)
	}
	if user.PasswordHash == "secret1" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	if _, err := svc.Register(context.Background(), "a@example.com", "other", "secret1", 0); !errors.Is(err, app.ErrEmailTaken) {
		t.Fatalf("duplicate email: got %v, want ErrEmailTaken", err)
	}
	if _, err := svc.Register(context.Background(), "b@example.com", "alice", "secret1", 0); !errors.Is(err, app.ErrUsernameTaken) {
		t.Fatalf("duplicate username: got %v, want ErrUsernameTaken", err)
	}
}

func TestLoginAndValidate(t *testing.T) {
	svc, _ := newAuthFixture(t)
	user, err := svc.Register(context.Background(), "a@example.com", "alice", "secret1", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(context.Background(), "a@example.com", "wrong"); !errors.Is(err, app.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "secret1"); !errors.Is(err, app.ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", err)
	}

	token, err := svc.Login(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("token must not be empty")
	}

	got, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("session resolves to user %d, want %d", got.ID, user.ID)
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, app.ErrSessionNotFound) {
		t.Fatalf("after logout: got %v, want ErrSessionNotFound", err)
	}
}

func TestLoginWithUserProvisions(t *testing.T) {
	svc, _ := newAuthFixture(t)

	token, err := svc.LoginWithUser(context.Background(), "sso@example.com", "ssouser")
	if err != nil {
		t.Fatalf("LoginWithUser: %v", err)
	}
	user, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if user.Email != "sso@example.com" || !user.HasWeeklyPass {
		t.Fatalf("provisioned user = %+v, want seeded defaults", user)
	}

	// Second login reuses the account.
	token2, err := svc.LoginWithUser(context.Background(), "sso@example.com", "ssouser")
	if err != nil {
		t.Fatalf("second LoginWithUser: %v", err)
	}
	again, err := svc.ValidateSession(context.Background(), token2)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second login resolved user %d, want %d", again.ID, user.ID)
	}
}

func TestChangeCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)
	user, err := svc.Register(context.Background(), "a@example.com", "alice", "secret1", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "b@example.com", "bob", "secret2", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ChangeEmail(context.Background(), user.ID, "new@example.com", "wrong"); !errors.Is(err, app.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangeEmail(context.Background(), user.ID, "b@example.com", "secret1"); !errors.Is(err, app.ErrEmailTaken) {
		t.Fatalf("taken email: got %v, want ErrEmailTaken", err)
	}
	if err := svc.ChangeEmail(context.Background(), user.ID, "new@example.com", "secret1"); err != nil {
		t.Fatalf("ChangeEmail: %v", err)
	}

	if err := svc.ChangeUsername(context.Background(), user.ID, "bob", "secret1"); !errors.Is(err, app.ErrUsernameTaken) {
		t.Fatalf("taken username: got %v, want ErrUsernameTaken", err)
	}
	if err := svc.ChangeUsername(context.Background(), user.ID, "alice2", "secret1"); err != nil {
		t.Fatalf("ChangeUsername: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, "secret1", "secret1"); !errors.Is(err, app.ErrSamePassword) {
		t.Fatalf("unchanged password: got %v, want ErrSamePassword", err)
	}
	if err := svc.ChangePassword(context.Background(), user.ID, "secret1", "secret9"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(context.Background(), "new@example.com", "secret9"); err != nil {
		t.Fatalf("login with new credentials: %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	svc, db := newAuthFixture(t)
	user, err := svc.Register(context.Background(), "a@example.com", "alice", "secret1", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.DeleteAccount(context.Background(), user.ID, "secret1"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	gone, err := db.GetByID(context.Background(), user.ID)
	if err != nil || gone != nil {
		t.Fatalf("user should be gone, got %v err %v", gone, err)
	}
	if _, err := svc.ValidateSession(context.Background(), token); err == nil {
		t.Fatal("sessions must not survive account deletion")
	}
}
