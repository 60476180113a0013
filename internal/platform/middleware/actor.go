package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"certtrust/internal/rbac"
)

// ActorValidator resolves a bearer token into an actor. Token issuance is an
// external concern; the core only reads the role and subject claims.
type ActorValidator interface {
	ValidateToken(tokenString string) (rbac.Actor, error)
}

type contextKeyActor struct{}

// GetActor retrieves the authenticated actor from the context. The zero
// Actor means no actor was resolved.
func GetActor(ctx context.Context) rbac.Actor {
	actor, _ := ctx.Value(contextKeyActor{}).(rbac.Actor)
	return actor
}

// WithActor stores an actor in the context; exported for tests.
func WithActor(ctx context.Context, actor rbac.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor{}, actor)
}

// RequireActor extracts the calling actor from a bearer token. When no
// validator is configured (development mode), the X-Actor-Role and
// X-Actor-Id headers are trusted instead. Requests without a resolvable
// role are rejected; role authorization itself happens in the services via
// rbac.Can.
func RequireActor(validator ActorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor, ok := resolveActor(r, validator)
			if !ok {
				logger.WarnContext(ctx, "unauthenticated request",
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"missing or invalid actor credentials"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func resolveActor(r *http.Request, validator ActorValidator) (rbac.Actor, bool) {
	if validator != nil {
		const bearerPrefix = "Bearer "
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
		if !ok {
			return rbac.Actor{}, false
		}
		actor, err := validator.ValidateToken(token)
		if err != nil {
			return rbac.Actor{}, false
		}
		return actor, true
	}

	role, err := rbac.ParseRole(r.Header.Get("X-Actor-Role"))
	if err != nil {
		return rbac.Actor{}, false
	}
	return rbac.Actor{Role: role, Subject: r.Header.Get("X-Actor-Id")}, true
}
