package gatesvc

import (
	"net/http"

	"github.com/mkrupp/kbchat/internal/domain"
	context_ "github.com/mkrupp/kbchat/internal/infra/context"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// SessionMiddleware creates middleware that places the caller's session in the request
// context. The session is loaded from the session cookie, or a new one is started and
// its cookie set when there is no usable cookie. Handlers that change the session are
// responsible for saving it.
func SessionMiddleware(next http.Handler, sessions *SessionService) http.Handler {
	log := logging.GetLogger("svc.gatesvc.http_session_middleware")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *domain.Session

		if cookie, err := r.Cookie(sessions.Config.CookieName); err == nil {
			sess, err = sessions.Load(ctx, cookie.Value)
			if err != nil && !isNotFound(err) {
				log.ErrorContext(ctx, "load session failed", "error", err)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)

				return
			}
		}

		if sess == nil {
			var err error

			sess, err = sessions.Start(ctx)
			if err != nil {
				log.ErrorContext(ctx, "start session failed", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			sessions.SetCookie(w, sess)
		}

		ctx = context_.WithSession(ctx, sess)
		if sess.Authenticated() {
			ctx = context_.WithUsername(ctx, sess.Username)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetCookie sets the session cookie for sess.
func (s *SessionService) SetCookie(w http.ResponseWriter, sess *domain.Session) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.Config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExpireCookie tells the client to drop the session cookie.
func (s *SessionService) ExpireCookie(w http.ResponseWriter) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
