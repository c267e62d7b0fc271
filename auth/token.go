// Package auth issues and checks the session tokens carried by every
// authenticated request and websocket.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie set on login.
const CookieName = "jwt"

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("user not found")
)

// UserLookup reports whether the account a token was issued for still exists.
type UserLookup func(ctx context.Context, userID int64) (bool, error)

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	exists UserLookup
}

func NewTokenService(secret string, ttl time.Duration, secureCookie bool) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secureCookie,
		now:    time.Now,
	}
}

// Generate signs a token for userID.
func (s *TokenService) Generate(userID int64) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate returns the user id carried by a valid, unexpired token.
func (s *TokenService) Validate(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// CheckUsers makes Authenticate reject tokens of deleted accounts.
func (s *TokenService) CheckUsers(fn UserLookup) {
	s.exists = fn
}

// Authenticate resolves the token carried by r to the id of an existing user.
func (s *TokenService) Authenticate(r *http.Request) (int64, error) {
	token := FromRequest(r)
	if token == "" {
		return 0, ErrNoToken
	}
	userID, err := s.Validate(token)
	if err != nil {
		return 0, err
	}
	if s.exists == nil {
		return userID, nil
	}
	ok, err := s.exists(r.Context(), userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnknownUser
	}
	return userID, nil
}

// SetCookie issues a token for userID and stores it in the session cookie.
func (s *TokenService) SetCookie(w http.ResponseWriter, userID int64) error {
	token, err := s.Generate(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (s *TokenService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// FromRequest finds a token in the session cookie, the Authorization
// header, or the token query parameter, in that order.
func FromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
