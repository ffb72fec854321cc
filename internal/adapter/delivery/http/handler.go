package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error)
	UpdateAlias(ctx context.Context, id uuid.UUID, alias string) (*entity.URL, error)
	RegisterClick(ctx context.Context, id uuid.UUID) (*entity.URL, error)
	ResolveURLCode(ctx context.Context, urlCode string) (*entity.URL, error)
	ListURLs(ctx context.Context) ([]entity.URL, error)
	GetURL(ctx context.Context, id uuid.UUID) (*entity.URL, error)
	GetURLStats(ctx context.Context, urlCode string) (*entity.URL, error)
	DeleteURL(ctx context.Context, id uuid.UUID) (*entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	qrSize   int
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, qrSize int) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return entity.IsValidAlias(fl.Field().String())
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		qrSize:   qrSize,
	}
}

// decodeRequest renders a 400 response and returns false when the body is
// missing, malformed or fails validation.
func (h *urlHandler) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		render.Status(r, http.StatusBadRequest)
		if errors.Is(err, io.EOF) {
			render.JSON(w, r, emptyRequestBodyResponse)
		} else {
			render.JSON(w, r, invalidRequestBodyResponse)
		}
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, entity.ErrInvalidID
	}
	return id, nil
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidID):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidIDResponse)
	case errors.Is(err, entity.ErrInvalidURL):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidURLResponse)
	case errors.Is(err, entity.ErrInvalidAlias):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidAliasResponse)
	case errors.Is(err, entity.ErrReservedAlias):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, reservedAliasResponse)
	case errors.Is(err, entity.ErrURLNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, urlNotFoundResponse)
	case errors.Is(err, entity.ErrURLCodeExists), errors.Is(err, entity.ErrShortURLExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, urlConflictResponse)
	case errors.Is(err, entity.ErrUpstream):
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		var pe interface{ PublicMessage() string }
		var details string
		if errors.As(err, &pe) {
			details = pe.PublicMessage()
		}

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, upstreamErrorResponse(details))
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(url))
}

func (h *urlHandler) updateAlias(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var req updateAliasRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	url, err := h.useCase.UpdateAlias(r.Context(), id, req.CustomURL)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(url))
}

func (h *urlHandler) registerClick(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	url, err := h.useCase.RegisterClick(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, clicksResponse{Clicks: url.Clicks})
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListURLs(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLListResponse(urls))
}

func (h *urlHandler) deleteURL(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	url, err := h.useCase.DeleteURL(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, deleteResponse{
		Message:    "URL deleted successfully",
		DeletedURL: toURLResponse(url),
	})
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	urlCode := chi.URLParam(r, "urlCode")

	url, err := h.useCase.GetURLStats(r.Context(), urlCode)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(url))
}

func (h *urlHandler) getQRCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	url, err := h.useCase.GetURL(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	png, err := qrcode.Encode(url.ShortURL, qrcode.Medium, h.qrSize)
	if err != nil {
		renderError(w, r, fmt.Errorf("failed to encode qr code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	urlCode := chi.URLParam(r, "urlCode")

	url, err := h.useCase.ResolveURLCode(r.Context(), urlCode)
	if err != nil {
		renderError(w, r, err)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}
