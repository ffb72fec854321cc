package http

import (
	"net"
	"net/http"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/tinylink/pkg/middleware"
	"github.com/vadimbarashkov/tinylink/pkg/ratelimit"
)

// rateLimit answers 429 once the client behind the request has used up its
// budget. It expects middleware.RealIP to run first.
func rateLimit(limiter *ratelimit.Limiter) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, tooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
