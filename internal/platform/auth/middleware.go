package auth

import (
	"net/http"
	"strings"
)

// Headers set by the gateway after it has authenticated the caller. The API
// trusts them because only the gateway can reach it.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorRoles = "X-Actor-Roles"
)

// IdentityMiddleware extracts the forwarded principal headers and stores the
// resulting identity on the request context. Requests without an actor header
// pass through anonymously.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity := &Identity{
				UID:   uid,
				Email: strings.TrimSpace(r.Header.Get(HeaderActorEmail)),
				Roles: parseRoles(r.Header.Get(HeaderActorRoles)),
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		role := strings.ToLower(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}
