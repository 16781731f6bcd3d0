package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const OperatorKey contextKey = "operator"

// LocalOperator is the identity used when no password is configured.
const LocalOperator = "local"

func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), OperatorKey, LocalOperator)))
			return
		}

		token, ok := bearer(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization"})
			return
		}

		operator, err := s.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearer reads the Authorization header, falling back to a token query
// parameter since browsers cannot set headers on websocket upgrades.
func bearer(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

func OperatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(OperatorKey).(string)
	return operator
}
