package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// ResponseRecorder wraps http.ResponseWriter to capture response metrics.
// It keeps streaming working by forwarding Flush and exposing Unwrap.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BytesSent  int

	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *ResponseRecorder {
	if rw, ok := w.(*ResponseRecorder); ok {
		return rw
	}

	return &ResponseRecorder{
		ResponseWriter: w,
		StatusCode:     http.StatusOK, // This is default if no response code is written
	}
}

func (w *ResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.StatusCode = code
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true

	n, err := w.ResponseWriter.Write(b)
	w.BytesSent += n

	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// Flush implements http.Flusher.
func (w *ResponseRecorder) Flush() {
	w.wroteHeader = true

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggingMiddleware creates middleware that logs HTTP request and response details.
// It logs requests at DEBUG level and responses at a level determined by the status code:
// - 5xx: ERROR
// - 4xx: WARN
// - Other: INFO.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.DebugContext(r.Context(), "request", slog.Group("http",
			"uri", r.URL.Path,
			"method", r.Method,
		))

		rw := wrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		var level logging.Level

		switch {
		case rw.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case rw.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		default:
			level = logging.LevelInfo
		}

		log.Log(r.Context(), level, "response", slog.Group("http",
			"uri", r.URL.Path,
			"method", r.Method,
			"status", rw.StatusCode,
			"bytes_sent", rw.BytesSent,
		))
	})
}
