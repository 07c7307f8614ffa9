package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
)

// Authenticator resolves a bearer token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*actor.Actor, error)
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}

// RequireUser rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				httputil.Error(w, r, err)
				return
			}
			a, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				httputil.Error(w, r, err)
				return
			}
			httputil.SetLoggedUser(r.Context(), a.ID)
			next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
		})
	}
}

// OptionalUser attaches the caller when a valid token is sent and lets
// anonymous requests through. A malformed or expired token is still an
// error.
func OptionalUser(auth Authenticator) func(http.Handler) http.Handler {
	required := RequireUser(auth)
	return func(next http.Handler) http.Handler {
		withUser := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withUser.ServeHTTP(w, r)
		})
	}
}
