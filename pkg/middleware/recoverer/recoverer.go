// Package recoverer turns handler panics into a generic JSON 500 response
// while logging the panic value and stack.
package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/tinylink/pkg/middleware"
)

// New returns a middleware that renders body with status 500 after a panic.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func New(logger *slog.Logger, body any) middleware.Middleware {
	const op = "middleware.recoverer"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error(
					"panic recovered",
					slog.Group(op,
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					),
				)

				if r.Header.Get("Connection") != "Upgrade" {
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
