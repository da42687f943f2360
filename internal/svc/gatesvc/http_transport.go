package gatesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/kbchat/internal/domain"
	context_ "github.com/mkrupp/kbchat/internal/infra/context"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	http_ "github.com/mkrupp/kbchat/internal/infra/transport/http"
)

var (
	// ErrNoUsername is returned when the username is missing from the request.
	ErrNoUsername = errors.New("no username")
	// ErrNoPassword is returned when the password is missing from the request.
	ErrNoPassword = errors.New("no password")
	// ErrNoSession is returned when a handler runs without the session middleware.
	ErrNoSession = errors.New("no session in request context")
)

const (
	msgUsernameExists     = "username already exists"
	msgInvalidCredentials = "invalid username or password"
)

// HTTPTransport handles HTTP requests for the session gate.
// It expects SessionMiddleware in front of it.
type HTTPTransport struct {
	sessions *SessionService
	log      logging.Logger
	mux      *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport with routes for the gate endpoints:
// - POST /auth/register: Register a new user
// - POST /auth/login: Authenticate the session
// - POST /auth/logout: End the session
// - GET /auth/status: Report the session's authorization state.
func NewHTTPTransport(sessions *SessionService) *HTTPTransport {
	ht := &HTTPTransport{
		sessions: sessions,
		log:      logging.GetLogger("svc.gatesvc.http_transport"),
		mux:      http.NewServeMux(),
	}

	ht.mux.HandleFunc("POST /auth/register", ht.HandleRegister)
	ht.mux.HandleFunc("POST /auth/login", ht.HandleLogin)
	ht.mux.HandleFunc("POST /auth/logout", ht.HandleLogout)
	ht.mux.HandleFunc("GET /auth/status", ht.HandleStatus)

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleRegister processes user registration requests.
// Expects form parameters: username, password.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user register failed", "error", err)
		} else {
			log.DebugContext(ctx, "user register handled")
		}
	}(r.Context())

	sess, ok := context_.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return ErrNoSession
	}

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	username := r.FormValue("username")
	log = log.With(logging.Group("user", "username", username))

	// Register user
	created, err := ht.sessions.Gate(sess).Register(r.Context(), username, r.FormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyUsername),
			errors.Is(err, domain.ErrEmptyPassword),
			errors.Is(err, domain.ErrPasswordTooLong):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, domain.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("register user: %w", err)
	}

	if !created {
		http.Error(w, msgUsernameExists, http.StatusConflict)

		return domain.ErrUserAlreadyExists
	}

	w.WriteHeader(http.StatusCreated)

	return nil
}

// HandleLogin processes login requests.
// Expects form parameters: username, password.
// On success the session is authenticated under a fresh id and the status is returned.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

//nolint:cyclop
func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user login handled")
		}
	}(r.Context())

	sess, ok := context_.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return ErrNoSession
	}

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	username := r.FormValue("username")
	if username == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoUsername
	}

	log = log.With(logging.Group("user", "username", username))

	password := r.FormValue("password")
	if password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoPassword
	}

	// Login user
	authenticated, err := ht.sessions.Gate(sess).AttemptLogin(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		} else {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("attempt login: %w", err)
	}

	if !authenticated {
		// the same answer for unknown users and wrong passwords
		http.Error(w, msgInvalidCredentials, http.StatusUnauthorized)

		return domain.ErrInvalidCredentials
	}

	// Persist session
	if err := ht.sessions.Renew(r.Context(), sess); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)

		return fmt.Errorf("renew session: %w", err)
	}

	if err := ht.sessions.Save(r.Context(), sess); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)

		return fmt.Errorf("save session: %w", err)
	}

	ht.sessions.SetCookie(w, sess)

	return writeStatus(w, sess)
}

// HandleLogout ends the session and expires its cookie.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user logout failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged out")
		}
	}(r.Context())

	sess, ok := context_.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return ErrNoSession
	}

	ht.sessions.Gate(sess).Logout()

	if err := ht.sessions.End(r.Context(), sess.ID); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)

		return fmt.Errorf("end session: %w", err)
	}

	ht.sessions.ExpireCookie(w)
	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleStatus reports whether the caller's session is authenticated.
func (ht *HTTPTransport) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := context_.SessionFromContext(r.Context())
	if !ok {
		ht.log.ErrorContext(r.Context(), "session status failed", "error", ErrNoSession)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	if err := writeStatus(w, sess); err != nil {
		ht.log.ErrorContext(r.Context(), "session status failed", "error", err)
	}
}

func writeStatus(w http.ResponseWriter, sess *domain.Session) error {
	w.Header().Set("Content-Type", "application/json")

	resp := domain.SessionStatusResponse{
		Authenticated: sess.Authenticated(),
		Username:      sess.Username,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}
