package chatsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mkrupp/kbchat/internal/domain"
	context_ "github.com/mkrupp/kbchat/internal/infra/context"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	http_ "github.com/mkrupp/kbchat/internal/infra/transport/http"
)

// ErrNoSession is returned when a handler runs without the session middleware.
var ErrNoSession = errors.New("no session in request context")

// HTTPTransport handles HTTP requests for the chat service.
// All routes require an authenticated session.
type HTTPTransport struct {
	chatSvc *ChatService
	log     logging.Logger
	handler http.Handler
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport with routes for the chat endpoints:
// - POST /chat: Ask a question, the answer is streamed as plain text
// - GET /chat/history: List the session's conversation.
func NewHTTPTransport(chatSvc *ChatService) *HTTPTransport {
	ht := &HTTPTransport{
		chatSvc: chatSvc,
		log:     logging.GetLogger("svc.chatsvc.http_transport"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", ht.HandleAsk)
	mux.HandleFunc("GET /chat/history", ht.HandleHistory)

	ht.handler = http_.AuthorizingMiddleware(mux, ht.log)

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.handler.ServeHTTP(w, r)
}

// HandleAsk processes chat questions.
// Expects form parameter: question.
func (ht *HTTPTransport) HandleAsk(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleAsk(w, r)
}

func (ht *HTTPTransport) handleAsk(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "chat ask failed", "error", err)
		} else {
			log.DebugContext(ctx, "chat answer streamed")
		}
	}(r.Context())

	session, ok := context_.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoSession
	}

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	// Ask
	answer, err := ht.chatSvc.Ask(r.Context(), session, r.FormValue("question"))
	if err != nil {
		switch {
		case isClientError(err):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, domain.ErrNotAuthenticated):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, domain.ErrKnowledgeService):
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		case errors.Is(err, domain.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("ask: %w", err)
	}

	// Stream answer
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)

	for _, chunk := range Chunks(answer, ht.chatSvc.Config.StreamChunkSize) {
		if _, err := io.WriteString(w, chunk); err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("flush: %w", err)
		}
	}

	return nil
}

// HandleHistory returns the session's conversation as JSON.
func (ht *HTTPTransport) HandleHistory(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleHistory(w, r)
}

func (ht *HTTPTransport) handleHistory(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		if err != nil {
			ht.log.ErrorContext(ctx, "chat history failed", "error", err)
		}
	}(r.Context())

	session, ok := context_.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return ErrNoSession
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(ht.chatSvc.History(session)); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}
