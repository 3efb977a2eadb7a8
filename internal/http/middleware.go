package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
)

type ctxKey int

const actorKey ctxKey = iota

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*service.Claims, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFromHeader(tokens, r)
			if !ok {
				respondError(w, http.StatusUnauthorized, service.KindUnauthorized.String(), "Not authorized, token failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, service.KindUnauthorized.String(), "Not authorized, no token")
			return
		}
		if !actor.IsAdmin() {
			respondError(w, http.StatusForbidden, service.KindForbidden.String(), service.ErrAdminOnly.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromHeader(tokens TokenParser, r *http.Request) (service.Actor, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return service.Actor{}, false
	}
	claims, err := tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return service.Actor{}, false
	}
	id, err := service.ParseID(claims.UserID)
	if err != nil {
		return service.Actor{}, false
	}
	role := claims.Role
	if role == "" {
		role = domain.RoleUser
	}
	return service.Actor{ID: id, Role: role}, true
}

func withActor(ctx context.Context, actor service.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func actorFromContext(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(service.Actor)
	return actor, ok
}

// mustActor writes a 401 and returns false when the request carries no caller.
func mustActor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, service.KindUnauthorized.String(), "Not authorized, no token")
	}
	return actor, ok
}
