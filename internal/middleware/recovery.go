package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

const internalErrorBody = `{"error":"internal server error","code":"INTERNAL_ERROR"}`

// Recoverer is a middleware that recovers from panics.
// It logs the panic with the request-scoped logger and returns a 500, unless
// the handler already sent its header.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				requestLogger(r, logger).Error("panic recovered",
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
					slog.Bool("header_written", wrapped.wroteHeader),
				)
				if wrapped.wroteHeader {
					return
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(internalErrorBody))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
