package http

import (
	"net/http"

	context_ "github.com/mkrupp/kbchat/internal/infra/context"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// AuthorizingMiddleware creates middleware that only lets authenticated sessions through.
// It requires the session middleware to have placed the caller's session in the request
// context. Requests without an authenticated session are rejected with 401.
// On success, the session's username is added to the request context.
func AuthorizingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := context_.SessionFromContext(r.Context())
		if !ok {
			log.ErrorContext(r.Context(), "no session in request context")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		if !session.Authenticated() {
			log.WarnContext(r.Context(), "session not authenticated")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUsername(r.Context(), session.Username)))
	})
}
