package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/pin"
	"fairywren/backend/internal/store"
)

var (
	errPINRequired = errors.New("PIN is required")
	errInvalidPIN  = errors.New("Invalid PIN")
	errBadToken    = errors.New("invalid or expired token")
)

// AuthManager exchanges staff PINs for signed tokens and verifies tokens
// on every protected request.
type AuthManager struct {
	repo   store.Repository
	pepper string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(repo store.Repository, pepper, secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &AuthManager{
		repo:   repo,
		pepper: pepper,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login finds the active staff member whose PIN fingerprint matches, then
// verifies the PIN against the stored hash. Lookup and verification both
// failing the same way keeps a wrong PIN indistinguishable from an unknown
// one.
func (a *AuthManager) Login(ctx context.Context, pinCode string) (*domain.LoginResponse, error) {
	if pinCode == "" {
		return nil, errPINRequired
	}

	fingerprint := pin.Fingerprint(a.pepper, pinCode)
	user, err := a.repo.GetUserByFingerprint(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errInvalidPIN
	}
	if err != nil {
		return nil, err
	}
	if !pin.Verify(user.PINHash, pinCode) {
		return nil, errInvalidPIN
	}

	token, err := a.issueToken(*user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, User: *user}, nil
}

type staffClaims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (a *AuthManager) issueToken(user domain.User) (string, error) {
	now := a.now()
	claims := staffClaims{
		Role: user.Role,
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a bearer token and returns the staff member it was
// issued to.
func (a *AuthManager) ParseToken(tokenString string) (domain.Actor, error) {
	var claims staffClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errBadToken
	}
	return domain.Actor{
		ID:   claims.Subject,
		Role: claims.Role,
		Name: claims.Name,
	}, nil
}
