package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "citeline/pkg/domain"
	"citeline/pkg/requestcontext"
)

// Claims is the identity shape the external provider's tokens resolve to.
type Claims struct {
	UserID  id.UserID
	Role    id.Role
	Country id.Country
}

// TokenValidator validates a bearer token and returns the actor identity.
type TokenValidator interface {
	Validate(tokenString string) (*Claims, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and injects the actor identity into
// the request context. Country and role are fixed at validation time; a role
// change requires a fresh token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithActor(r.Context(), claims.UserID, claims.Role, claims.Country)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin actors. Mount after RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestcontext.Role(r.Context()) != id.RoleAdmin {
				logger.WarnContext(r.Context(), "forbidden - admin capability required",
					"role", requestcontext.Role(r.Context()).String(),
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Admin capability required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
