package auth

import (
	"context"
	"errors"
	"net/http"

	"socialhub/httputil"
)

type contextKey struct{}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the authenticated user id, or 0.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKey{}).(int64)
	return id
}

// Middleware rejects requests without a valid session token.
func (s *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Authenticate(r)
		if err != nil {
			Reject(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Reject answers a failed Authenticate call.
func Reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoToken):
		httputil.Unauthorized(w, "Unauthorized: No token provided")
	case errors.Is(err, ErrInvalidToken):
		httputil.Unauthorized(w, "Unauthorized: Invalid token")
	case errors.Is(err, ErrUnknownUser):
		httputil.Unauthorized(w, "User not found")
	default:
		httputil.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
