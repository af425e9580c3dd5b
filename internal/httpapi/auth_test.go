package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/pin"
	"fairywren/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	repo := memory.NewSeeded(testPepper)
	return NewAuthManager(repo, testPepper, "test-secret-key-test-secret-key!", time.Hour)
}

func TestLoginIssuesParseableToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(context.Background(), "4444")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.ID != resp.User.ID {
		t.Fatalf("token subject %q does not match user %q", actor.ID, resp.User.ID)
	}
	if actor.Role != domain.RoleOwner {
		t.Fatalf("expected owner role in token, got %q", actor.Role)
	}
	if actor.Name != "Njeri" {
		t.Fatalf("expected name claim, got %q", actor.Name)
	}
}

func TestLoginRejectsUnknownPIN(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.Login(context.Background(), "9999")
	if !errors.Is(err, errInvalidPIN) {
		t.Fatalf("expected Invalid PIN, got %v", err)
	}
}

func TestLoginRejectsEmptyPIN(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.Login(context.Background(), "")
	if !errors.Is(err, errPINRequired) {
		t.Fatalf("expected PIN is required, got %v", err)
	}
}

func TestLoginIgnoresInactiveStaff(t *testing.T) {
	repo := memory.NewSeeded(testPepper)
	auth := NewAuthManager(repo, testPepper, "test-secret-key-test-secret-key!", time.Hour)
	ctx := context.Background()

	user, err := repo.GetUserByFingerprint(ctx, pin.Fingerprint(testPepper, "1111"))
	if err != nil {
		t.Fatalf("find seeded waitress: %v", err)
	}
	user.Active = false
	if _, err := repo.UpdateUser(ctx, *user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := auth.Login(ctx, "1111"); !errors.Is(err, errInvalidPIN) {
		t.Fatalf("expected Invalid PIN for inactive staff, got %v", err)
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(context.Background(), "2222")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	tampered := resp.Token[:len(resp.Token)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	auth := newTestAuth(t)
	other := newTestAuth(t)
	other.secret = []byte("another-secret-another-secret!!!")

	resp, err := other.Login(context.Background(), "2222")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.ParseToken(resp.Token); err == nil {
		t.Fatalf("expected token from a different secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := newTestAuth(t)
	auth.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	auth.ttl = time.Hour

	resp, err := auth.Login(context.Background(), "3333")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.ParseToken(resp.Token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
