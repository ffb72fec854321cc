// Package http is the HTTP delivery layer: routing, request decoding and
// validation, error mapping and response rendering.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/tinylink/pkg/middleware/recoverer"
	"github.com/vadimbarashkov/tinylink/pkg/ratelimit"
)

const (
	defaultQRSize      = 256
	defaultSwaggerPath = "./docs/swagger.yml"
)

type Options struct {
	AllowedOrigins []string
	// RateLimiter guards the endpoints that call the shortening provider. Nil disables it.
	RateLimiter *ratelimit.Limiter
	QRSize      int
	SwaggerPath string
}

func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts Options) *chi.Mux {
	if opts.QRSize <= 0 {
		opts.QRSize = defaultQRSize
	}
	if opts.SwaggerPath == "" {
		opts.SwaggerPath = defaultSwaggerPath
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger, serverErrorResponse))
	r.Use(middleware.Compress(5, "application/json"))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.SwaggerPath)
	})

	h := newURLHandler(urlUseCase, validator.New(), opts.QRSize)

	limited := func(r chi.Router) chi.Router {
		if opts.RateLimiter == nil {
			return r
		}
		return r.With(rateLimit(opts.RateLimiter))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)

		limited(r).Post("/shorten", h.shortenURL)
		r.Get("/urls", h.listURLs)
		r.Get("/analytics/{urlCode}", h.getURLStats)

		r.Route("/url", func(r chi.Router) {
			limited(r).Put("/update/{id}", h.updateAlias)
			r.Delete("/{id}", h.deleteURL)
			r.Post("/{id}/click", h.registerClick)
			r.Get("/{id}/qr", h.getQRCode)
		})
	})

	r.Get("/{urlCode}", h.redirect)

	return r
}
