package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
)

// RequireAction пропускает запрос, только если роль участника допускает action.
// Ставится после JWTMiddleware.
func RequireAction(log *slog.Logger, action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				log.Error("user identification missing", slog.String("request_id", middleware.GetReqID(r.Context())))
				response.Fail(w, r, http.StatusUnauthorized, "user identification missing")
				return
			}
			if !policy.Allow(principal.Role, action) {
				log.Warn("access denied",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("user_id", principal.UserID),
					slog.String("role", string(principal.Role)),
					slog.String("action", string(action)),
				)
				response.Fail(w, r, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
